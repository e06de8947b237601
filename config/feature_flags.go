package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Feature flag names.
const (
	FeatureDemoData = "practice.demo_data"
	FeatureTips     = "practice.tips"
)

// ErrFeatureNotFound is returned for a name that was never registered.
var ErrFeatureNotFound = errors.New("feature not found")

// Feature is one toggle.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// FeatureFlags gates the optional surfaces: demo data and tips. A nil
// *FeatureFlags enables everything.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

func defaultFeatures() *FeatureFlags {
	return &FeatureFlags{features: map[string]*Feature{
		FeatureDemoData: {
			Name:        FeatureDemoData,
			Description: "Allow replacing the history with generated demo sessions",
			Enabled:     true,
		},
		FeatureTips: {
			Name:        FeatureTips,
			Description: "Serve personalized practice tips",
			Enabled:     true,
		},
	}}
}

// LoadFeatureFlags returns the defaults with FEATURE_* environment
// overrides applied.
func LoadFeatureFlags() *FeatureFlags {
	ff := defaultFeatures()
	ff.applyEnv()
	return ff
}

// featureEnvKey maps "practice.demo_data" to "FEATURE_PRACTICE_DEMO_DATA".
func featureEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

func (ff *FeatureFlags) applyEnv() {
	for name, f := range ff.features {
		raw, ok := os.LookupEnv(featureEnvKey(name))
		if !ok {
			continue
		}
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			f.Enabled = b
		}
	}
}

// applyOverrides sets flags from the config file. Unknown names are an error
// so that typos do not pass silently.
func (ff *FeatureFlags) applyOverrides(overrides map[string]bool) error {
	var unknown []string
	for name, on := range overrides {
		f, ok := ff.features[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		f.Enabled = on
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s", ErrFeatureNotFound, strings.Join(unknown, ", "))
	}
	return nil
}

// IsEnabled reports whether name is registered and on.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	if ff == nil {
		return true
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	return ok && f.Enabled
}

// SetEnabled flips a flag at runtime.
func (ff *FeatureFlags) SetEnabled(name string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFeatureNotFound, name)
	}
	f.Enabled = enabled
	return nil
}

// All returns a copy of every flag, sorted by name.
func (ff *FeatureFlags) All() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
