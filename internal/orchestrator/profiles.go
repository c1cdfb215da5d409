package orchestrator

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spendlens/spendlens-engine/internal/models"
)

// ProfileEngine overrides detection thresholds for spending domains that
// need tighter or looser tuning than the global defaults.
type ProfileEngine struct {
	profiles []Profile
	logger   *slog.Logger
}

// Profile is a single tuning profile.
type Profile struct {
	ID        string           `yaml:"id"`
	Match     ProfileMatch     `yaml:"match"`
	Overrides ProfileOverrides `yaml:"overrides"`
}

// ProfileMatch defines optional attributes for profile matching.
type ProfileMatch struct {
	Organization string `yaml:"organization"`
	Category     string `yaml:"category"`
}

// ProfileOverrides carries the threshold overrides. Zero values leave the
// corresponding setting untouched.
type ProfileOverrides struct {
	ZScoreThreshold  float64 `yaml:"zscore_threshold"`
	MinSampleSize    int     `yaml:"min_sample_size"`
	HHICeiling       float64 `yaml:"hhi_ceiling"`
	DominanceCeiling float64 `yaml:"dominance_ceiling"`
	PeakSigma        float64 `yaml:"peak_sigma"`
}

// ProfileConfigFile is the YAML root structure.
type ProfileConfigFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// NewProfileEngine loads profiles from the provided path. If path is empty
// or the file does not exist, returns nil engine.
func NewProfileEngine(path string, logger *slog.Logger) (*ProfileEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg ProfileConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileEngine{profiles: cfg.Profiles, logger: logger}, nil
}

// Apply returns the detection config with every matching profile's
// overrides folded in, in file order.
func (e *ProfileEngine) Apply(cfg models.DetectionConfig, spec models.QuerySpec) models.DetectionConfig {
	if e == nil {
		return cfg
	}
	for _, p := range e.profiles {
		if !p.matches(spec) {
			continue
		}
		e.logger.Debug("detection profile applied", "profile", p.ID)
		if p.Overrides.ZScoreThreshold > 0 {
			cfg.ZScoreThreshold = p.Overrides.ZScoreThreshold
		}
		if p.Overrides.MinSampleSize > 0 {
			cfg.MinSampleSize = p.Overrides.MinSampleSize
		}
		if p.Overrides.HHICeiling > 0 {
			cfg.HHICeiling = p.Overrides.HHICeiling
		}
		if p.Overrides.DominanceCeiling > 0 {
			cfg.DominanceCeiling = p.Overrides.DominanceCeiling
		}
		if p.Overrides.PeakSigma > 0 {
			cfg.PeakSigma = p.Overrides.PeakSigma
		}
	}
	return cfg
}

func (p Profile) matches(spec models.QuerySpec) bool {
	if p.Match.Organization != "" && !strings.EqualFold(p.Match.Organization, spec.Organization) {
		return false
	}
	if p.Match.Category != "" && !containsFold(spec.Categories, p.Match.Category) {
		return false
	}
	return true
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
