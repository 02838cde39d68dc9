package ocr

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

const (
	defaultBreakerFailures = 3
	defaultBreakerCooldown = time.Minute
)

// Orchestrator fans an image out to every enabled provider and merges the
// fragments in ascending provider-ID order. Provider failures are logged and
// contribute nothing; they never reach the caller.
type Orchestrator struct {
	providers []*guardedProvider
	fallback  func(imageRef string) []model.TextFragment

	rateLimits      map[model.ProviderID]float64
	breakerFailures uint32
	breakerCooldown time.Duration
}

type guardedProvider struct {
	Provider
	breaker *gobreaker.CircuitBreaker[[]model.TextFragment]
	limiter *rate.Limiter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFallback replaces the canned fallback used when no provider returned text.
func WithFallback(fn func(imageRef string) []model.TextFragment) Option {
	return func(o *Orchestrator) { o.fallback = fn }
}

// WithRateLimits caps each provider's request rate in requests per second.
// Zero or absent means unlimited.
func WithRateLimits(limits map[model.ProviderID]float64) Option {
	return func(o *Orchestrator) { o.rateLimits = limits }
}

// WithBreaker sets how many consecutive failures open a provider's circuit
// and how long it stays open.
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(o *Orchestrator) {
		o.breakerFailures = failures
		o.breakerCooldown = cooldown
	}
}

// NewOrchestrator keeps the enabled providers, sorted by ID.
func NewOrchestrator(providers []Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fallback:        Simulate,
		breakerFailures: defaultBreakerFailures,
		breakerCooldown: defaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(o)
	}

	for _, p := range providers {
		if p == nil || !p.Enabled() {
			continue
		}
		o.providers = append(o.providers, o.guard(p))
	}
	slices.SortStableFunc(o.providers, func(a, b *guardedProvider) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
	return o
}

func (o *Orchestrator) guard(p Provider) *guardedProvider {
	failures := o.breakerFailures
	id := p.ID()
	gp := &guardedProvider{
		Provider: p,
		breaker: gobreaker.NewCircuitBreaker[[]model.TextFragment](gobreaker.Settings{
			Name:    string(id),
			Timeout: o.breakerCooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				zap.L().Warn("ocr: circuit state changed",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
	if r := o.rateLimits[id]; r > 0 {
		burst := int(r)
		if burst < 1 {
			burst = 1
		}
		gp.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
	return gp
}

// Providers returns the IDs of the enabled providers in merge order.
func (o *Orchestrator) Providers() []model.ProviderID {
	ids := make([]model.ProviderID, len(o.providers))
	for i, p := range o.providers {
		ids[i] = p.ID()
	}
	return ids
}

// Recognize runs every enabled provider concurrently and concatenates their
// fragments in provider order. If nothing was recognized the fallback is used.
func (o *Orchestrator) Recognize(ctx context.Context, payload preprocess.Payload, imageRef string) []model.TextFragment {
	results := make([][]model.TextFragment, len(o.providers))

	var g errgroup.Group
	for i, p := range o.providers {
		g.Go(func() error {
			results[i] = o.call(ctx, p, payload, imageRef)
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.TextFragment
	for _, r := range results {
		merged = append(merged, r...)
	}

	if len(merged) == 0 && o.fallback != nil {
		fallbackUsed.Inc()
		zap.L().Info("ocr: no provider text, using simulated fragments", zap.String("image", imageRef))
		return o.fallback(imageRef)
	}
	return merged
}

// call runs one provider behind its limiter and breaker. It never fails.
func (o *Orchestrator) call(ctx context.Context, p *guardedProvider, payload preprocess.Payload, imageRef string) (frags []model.TextFragment) {
	id := string(p.ID())
	log := zap.L().With(zap.String("provider", id), zap.String("image", imageRef))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			providerCalls.WithLabelValues(id, "panic").Inc()
			log.Error("ocr: provider panicked", zap.String("panic", fmt.Sprint(r)))
			frags = nil
		}
	}()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			providerCalls.WithLabelValues(id, "error").Inc()
			log.Warn("ocr: rate limiter wait failed", zap.Error(err))
			return nil
		}
	}

	out, err := p.breaker.Execute(func() ([]model.TextFragment, error) {
		return p.Recognize(ctx, payload)
	})
	providerLatency.WithLabelValues(id).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		providerCalls.WithLabelValues(id, "circuit_open").Inc()
		log.Debug("ocr: provider skipped, circuit open")
		return nil
	case err != nil:
		providerCalls.WithLabelValues(id, "error").Inc()
		log.Warn("ocr: provider failed", zap.Error(err))
		return nil
	}

	providerCalls.WithLabelValues(id, "ok").Inc()
	providerFragments.WithLabelValues(id).Add(float64(len(out)))
	log.Debug("ocr: provider done", zap.Int("fragments", len(out)), zap.Duration("duration", time.Since(start)))
	return out
}
