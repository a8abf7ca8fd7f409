package service

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/ticket-escalation/internal/clock"
	"github.com/spec-kit/ticket-escalation/internal/repository"
)

// TicketNumberGenerator produces TKT-YYYYMMDD-##### identifiers. The date
// and the daily counter use the configured location.
type TicketNumberGenerator struct {
	sequence repository.SequenceSource
	clock    clock.Clock
	location *time.Location
}

// NewTicketNumberGenerator constructs the generator. A nil location means UTC.
func NewTicketNumberGenerator(sequence repository.SequenceSource, clk clock.Clock, location *time.Location) *TicketNumberGenerator {
	if clk == nil {
		clk = clock.Real()
	}
	if location == nil {
		location = time.UTC
	}
	return &TicketNumberGenerator{sequence: sequence, clock: clk, location: location}
}

// Generate returns the next ticket number for the current day.
func (g *TicketNumberGenerator) Generate(ctx context.Context) (string, error) {
	now := g.clock.Now().In(g.location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.location)
	seq, err := g.sequence.NextDaily(ctx, dayStart)
	if err != nil {
		return "", fmt.Errorf("next ticket sequence: %w", err)
	}
	return fmt.Sprintf("TKT-%s-%05d", now.Format("20060102"), seq), nil
}
