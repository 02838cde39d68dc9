// Package pipeline runs screenshots through preprocessing, OCR, field
// extraction and ledger validation.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/extract"
	"github.com/sells-group/bankscan/internal/ledger"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/ocr"
	"github.com/sells-group/bankscan/internal/preprocess"
)

// ErrNoText is recorded when OCR produced no fragments at all.
var ErrNoText = eris.New("pipeline: no text recognized")

// Pipeline processes batches of images. Each batch is independent; nothing
// is shared between images except the read-only collaborators below.
type Pipeline struct {
	preprocessor *preprocess.Preprocessor
	orchestrator *ocr.Orchestrator
	extractor    *extract.Extractor
	validator    *ledger.Validator
	concurrency  int
}

type options struct {
	providers   []ocr.Provider
	ocrOpts     []ocr.Option
	concurrency int
}

// Option configures a Pipeline.
type Option func(*options)

// WithProviders replaces the providers built from settings.
func WithProviders(providers ...ocr.Provider) Option {
	return func(o *options) { o.providers = providers }
}

// WithOCROptions passes extra options to the OCR orchestrator.
func WithOCROptions(opts ...ocr.Option) Option {
	return func(o *options) { o.ocrOpts = append(o.ocrOpts, opts...) }
}

// WithConcurrency bounds how many images are processed at once.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// New builds a pipeline from a settings snapshot. A nil validator behaves
// like an empty ledger.
func New(settings *config.Settings, validator *ledger.Validator, opts ...Option) (*Pipeline, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	o := options{concurrency: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	if o.providers == nil {
		o.providers = ocr.NewProviders(settings.Providers)
	}
	if validator == nil {
		validator = ledger.NewValidator(nil, ledger.MatchSubstring)
	}

	ex, err := extract.New(settings.Rules)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: compile extraction rules")
	}

	ocrOpts := append([]ocr.Option{ocr.WithRateLimits(rateLimits(settings.Providers))}, o.ocrOpts...)

	return &Pipeline{
		preprocessor: preprocess.New(settings.Preprocess),
		orchestrator: ocr.NewOrchestrator(o.providers, ocrOpts...),
		extractor:    ex,
		validator:    validator,
		concurrency:  o.concurrency,
	}, nil
}

func rateLimits(cfg config.ProvidersConfig) map[model.ProviderID]float64 {
	out := make(map[model.ProviderID]float64)
	for _, id := range model.ProviderIDs() {
		ps, ok := cfg.Get(id)
		if !ok {
			continue
		}
		if rl := ps.Common().RateLimit; rl > 0 {
			out[id] = rl
		}
	}
	return out
}

// Providers returns the enabled OCR providers in merge order.
func (p *Pipeline) Providers() []model.ProviderID {
	return p.orchestrator.Providers()
}

// Run processes refs and returns a new batch whose records are in the same
// order as refs. Individual image failures become FAILED records.
func (p *Pipeline) Run(ctx context.Context, refs []string) *model.Batch {
	batch := &model.Batch{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Records:   make([]model.ExtractedRecord, len(refs)),
	}
	log := zap.L().With(zap.String("batch_id", batch.ID))
	log.Info("pipeline: batch started", zap.Int("images", len(refs)), zap.Int("concurrency", p.concurrency))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			batch.Records[i] = p.ProcessImage(ctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	s := batch.Summary()
	batchesTotal.Inc()
	log.Info("pipeline: batch complete",
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Int("matched", s.Matched),
		zap.Duration("duration", time.Since(start)),
	)
	return batch
}

// ProcessImage runs one image through every stage. It never panics and
// never returns an error; failures are reported on the record.
func (p *Pipeline) ProcessImage(ctx context.Context, ref string) (rec model.ExtractedRecord) {
	log := zap.L().With(zap.String("image", ref))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: image panicked", zap.Any("panic", r))
			rec = model.NewFailedRecord(ref, eris.Errorf("panic: %v", r), time.Since(start))
		}
		observe(rec)
		log.Info("pipeline: image processed",
			zap.String("status", string(rec.Status)),
			zap.String("validation", string(rec.ValidationStatus)),
			zap.Float64("duration", rec.ProcessingTime),
		)
	}()

	if err := ctx.Err(); err != nil {
		return model.NewFailedRecord(ref, eris.Wrap(err, "pipeline: cancelled"), time.Since(start))
	}

	payload, err := p.preprocessor.Prepare(ref)
	if err != nil {
		log.Warn("pipeline: preprocessing failed", zap.Error(err))
		return model.NewFailedRecord(ref, err, time.Since(start))
	}

	frags := p.orchestrator.Recognize(ctx, payload, ref)
	if len(frags) == 0 {
		return model.NewFailedRecord(ref, ErrNoText, time.Since(start))
	}
	log.Debug("pipeline: text recognized", zap.Int("fragments", len(frags)))

	res := p.extractor.Extract(frags)
	rec = model.ExtractedRecord{
		ImageReference:       ref,
		BankName:             res.BankName,
		CompanyName:          res.CompanyName,
		AccountNumber:        res.AccountNumber,
		Balance:              res.Balance,
		ExtractionConfidence: res.Confidence,
		Status:               model.RecordSuccess,
		ExtractedAt:          time.Now().UTC(),
		TextFragments:        frags,
	}
	rec = p.validator.Validate(rec)
	rec.ProcessingTime = time.Since(start).Seconds()
	return rec
}
