package analysis

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"lineagecore/pkg/lineage"
)

// Limits holds the thresholds of the automated error checker.
type Limits struct {
	// MinProbability is the probability below which links and divisions
	// are flagged.
	MinProbability float64 `yaml:"min_probability"`
	// MinTimeBetweenDivisionsH flags mothers that divide again too soon
	// after the previous division, in hours.
	MinTimeBetweenDivisionsH float64 `yaml:"min_time_between_divisions_h"`
	// MaxDistanceMovedUmPerMin flags cells moving faster than this many
	// micrometers per minute.
	MaxDistanceMovedUmPerMin float64 `yaml:"max_distance_moved_um_per_min"`
}

// Resolution converts pixel coordinates and time point numbers into
// physical units.
type Resolution struct {
	PixelSizeXUm       float64 `yaml:"pixel_size_x_um"`
	PixelSizeYUm       float64 `yaml:"pixel_size_y_um"`
	PixelSizeZUm       float64 `yaml:"pixel_size_z_um"`
	TimePointIntervalM float64 `yaml:"time_point_interval_m"`
}

// DefaultLimits returns the thresholds used when no configuration file is
// given.
func DefaultLimits() Limits {
	return Limits{
		MinProbability:           0.1,
		MinTimeBetweenDivisionsH: 10,
		MaxDistanceMovedUmPerMin: 10,
	}
}

// DefaultResolution assumes isotropic 1 um pixels and one time point per
// minute, which keeps every unit conversion an identity.
func DefaultResolution() Resolution {
	return Resolution{PixelSizeXUm: 1, PixelSizeYUm: 1, PixelSizeZUm: 1, TimePointIntervalM: 1}
}

// TimePointIntervalH returns the time between two consecutive time points
// in hours.
func (r Resolution) TimePointIntervalH() float64 {
	return r.TimePointIntervalM / 60
}

// DistanceUm returns the physical distance between two positions in
// micrometers.
func (r Resolution) DistanceUm(a, b lineage.Position) float64 {
	dx := (a.X - b.X) * r.PixelSizeXUm
	dy := (a.Y - b.Y) * r.PixelSizeYUm
	dz := (a.Z - b.Z) * r.PixelSizeZUm
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// limitsFile is the on-disk YAML layout: the checker thresholds at the top
// level with the resolution nested under its own key.
type limitsFile struct {
	Limits     `yaml:",inline"`
	Resolution Resolution `yaml:"resolution"`
}

// LoadLimits reads thresholds and resolution from a YAML file. Absent keys
// keep their defaults.
func LoadLimits(path string) (Limits, Resolution, error) {
	file := limitsFile{Limits: DefaultLimits(), Resolution: DefaultResolution()}
	data, err := os.ReadFile(path) // #nosec G304 -- the caller chooses its own configuration file
	if err != nil {
		return file.Limits, file.Resolution, fmt.Errorf("read limits: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return DefaultLimits(), DefaultResolution(), fmt.Errorf("parse limits: %w", err)
	}
	return file.Limits, file.Resolution, nil
}
