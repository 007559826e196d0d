// Package gps validates device location readings attached to action
// start/end transitions.
package gps

import (
	"fmt"

	"github.com/edureach/fieldops/internal/shared/config"
	"github.com/edureach/fieldops/internal/shared/errors"
	"github.com/edureach/fieldops/internal/shared/metrics"
)

// Tag labels which transition a reading belongs to.
type Tag string

const (
	TagStart Tag = "start"
	TagEnd   Tag = "end"
)

// Reading is a raw device location sample.
type Reading struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

// Validator applies plausibility and accuracy thresholds to readings.
type Validator struct {
	maxAccuracy  float64
	warnAccuracy float64
}

// NewValidator creates a validator from configuration.
func NewValidator(cfg config.GPSConfig) *Validator {
	return &Validator{
		maxAccuracy:  cfg.MaxAccuracyMeters,
		warnAccuracy: cfg.WarnAccuracyMeters,
	}
}

// Validate checks a reading. It returns a caller-visible warning for
// borderline accuracy, or an Unprocessable error for readings that are
// rejected outright.
func (v *Validator) Validate(reading Reading, tag Tag) (warning string, err error) {
	if reading.Lat < -90 || reading.Lat > 90 || reading.Lng < -180 || reading.Lng > 180 {
		metrics.RecordGPSRejection(string(tag), "out_of_bounds")
		return "", errors.Unprocessable("invalid GPS reading", map[string]string{
			"coordinates": fmt.Sprintf("lat/lng out of bounds: %f,%f", reading.Lat, reading.Lng),
		})
	}

	if reading.Lat == 0 && reading.Lng == 0 {
		metrics.RecordGPSRejection(string(tag), "null_island")
		return "", errors.Unprocessable("invalid GPS reading", map[string]string{
			"coordinates": "0,0 is not a plausible device location",
		})
	}

	if reading.Accuracy <= 0 {
		metrics.RecordGPSRejection(string(tag), "missing_accuracy")
		return "", errors.Unprocessable("invalid GPS reading", map[string]string{
			"accuracy": "accuracy is required and must be positive",
		})
	}

	if reading.Accuracy > v.maxAccuracy {
		metrics.RecordGPSRejection(string(tag), "low_accuracy")
		return "", errors.Unprocessable("invalid GPS reading", map[string]string{
			"accuracy": fmt.Sprintf("accuracy %.0fm exceeds the %.0fm limit", reading.Accuracy, v.maxAccuracy),
		})
	}

	if reading.Accuracy > v.warnAccuracy {
		warning = fmt.Sprintf("GPS accuracy is low (%.0fm); location may be imprecise", reading.Accuracy)
	}

	return warning, nil
}
