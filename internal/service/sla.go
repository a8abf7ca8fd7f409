package service

import (
	"time"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

// DefaultSLA applies when neither unit nor category configure one.
const DefaultSLA = 24 * time.Hour

// SLACalculator derives ticket deadlines. Deadlines are plain wall-clock
// offsets; business hours and holidays are not excluded.
type SLACalculator struct {
	fallback time.Duration
}

// NewSLACalculator builds a calculator. A non-positive fallback uses DefaultSLA.
func NewSLACalculator(fallback time.Duration) *SLACalculator {
	if fallback <= 0 {
		fallback = DefaultSLA
	}
	return &SLACalculator{fallback: fallback}
}

// ComputeDeadline picks the unit SLA, then the category SLA, then the
// fallback. Non-positive hour values are ignored.
func (c *SLACalculator) ComputeDeadline(now time.Time, unit *domain.Unit, category *domain.Category) time.Time {
	window := c.fallback
	if category != nil && category.DefaultSLAHours != nil && *category.DefaultSLAHours > 0 {
		window = time.Duration(*category.DefaultSLAHours) * time.Hour
	}
	if unit != nil && unit.SLAHours != nil && *unit.SLAHours > 0 {
		window = time.Duration(*unit.SLAHours) * time.Hour
	}
	return now.Add(window)
}
