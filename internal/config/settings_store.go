package config

import (
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bankscan/internal/model"
)

// ProviderStatus is the admin view of one provider.
type ProviderStatus struct {
	Enabled             bool    `json:"enabled"`
	Configured          bool    `json:"configured"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// SettingsStore holds the process-wide OCR settings and persists updates.
// Updates replace the whole file; concurrent writers are last-writer-wins.
type SettingsStore struct {
	path string

	mu  sync.RWMutex
	cur *Settings
}

// NewSettingsStore loads settings from path. A corrupt file is logged and
// replaced in memory by the defaults.
func NewSettingsStore(path string) *SettingsStore {
	s, err := LoadSettings(path)
	if err != nil {
		zap.L().Warn("config: using default OCR settings", zap.String("path", path), zap.Error(err))
	}
	return &SettingsStore{path: path, cur: s}
}

// Path returns the backing file.
func (s *SettingsStore) Path() string { return s.path }

// Snapshot returns a deep copy of the current settings.
func (s *SettingsStore) Snapshot() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Clone()
}

// UpdateProvider merges patch into one provider's config and persists the
// whole document. Patch keys are the YAML field names of that provider.
func (s *SettingsStore) UpdateProvider(provider string, patch map[string]any) error {
	id, ok := model.ParseProviderID(provider)
	if !ok {
		return eris.Wrapf(ErrUnknownProvider, "config: provider %q", provider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur.Clone()
	target, _ := next.Providers.Get(id)

	raw, err := yaml.Marshal(patch)
	if err != nil {
		return eris.Wrap(err, "config: marshal provider patch")
	}
	if err := yaml.Unmarshal(raw, target); err != nil {
		return eris.Wrapf(ErrInvalidSettings, "config: apply %s patch: %v", id, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if err := SaveSettings(s.path, next); err != nil {
		return err
	}

	s.cur = next
	zap.L().Info("config: provider updated", zap.String("provider", string(id)))
	return nil
}

// Status reports enabled/configured/threshold for every provider.
func (s *SettingsStore) Status() map[model.ProviderID]ProviderStatus {
	snap := s.Snapshot()
	out := make(map[model.ProviderID]ProviderStatus, len(model.ProviderIDs()))
	for _, id := range model.ProviderIDs() {
		p, _ := snap.Providers.Get(id)
		out[id] = ProviderStatus{
			Enabled:             p.Common().Enabled,
			Configured:          p.Configured(),
			ConfidenceThreshold: p.Common().ConfidenceThreshold,
		}
	}
	return out
}

// ParsePatch converts key=value strings into typed patch values: "true" and
// "false" become bools, numeric settings become floats and languages is
// split on commas. Everything else stays a string so credentials survive
// verbatim.
func ParsePatch(kv map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(kv))
	for k, v := range kv {
		v = strings.TrimSpace(v)
		switch {
		case v == "true" || v == "false":
			out[k] = v == "true"
		case k == "confidence_threshold" || k == "rate_limit":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "config: parse %s", k)
			}
			out[k] = f
		case k == "languages":
			out[k] = strings.Split(v, ",")
		default:
			out[k] = v
		}
	}
	return out, nil
}
