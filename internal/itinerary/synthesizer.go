package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/llm"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// ErrNoDays means the completion had no parseable day headers.
var ErrNoDays = errors.New("completion contained no parseable days")

// Synthesizer generates itineraries through a Completer.
type Synthesizer struct {
	completer   llm.Completer
	temperature float64
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(s *Synthesizer) {
		s.temperature = t
	}
}

// NewSynthesizer creates a synthesizer. A nil completer always falls back.
func NewSynthesizer(completer llm.Completer, options ...Option) *Synthesizer {
	s := &Synthesizer{completer: completer, temperature: llm.DefaultTemperature}
	for _, option := range options {
		option(s)
	}
	return s
}

// Generate always returns a usable itinerary. When generation fails the
// itinerary is the fallback template and the error says why.
func (s *Synthesizer) Generate(ctx context.Context, c Context) (trip.Itinerary, error) {
	req := c.Request
	if s.completer == nil {
		return Fallback(req), fmt.Errorf("%w: no completer configured", llm.ErrServiceUnavailable)
	}

	text, err := s.completer.Complete(ctx, BuildPrompt(c), SystemPrompt, s.temperature)
	if err != nil {
		log.Printf("Itinerary generation failed, using fallback (destination: %s, error: %v)", req.Destination, err)
		return Fallback(req), err
	}

	days := req.DurationDays()
	plans := Parse(text, req.StartDate, days)
	if len(plans) == 0 {
		log.Printf("Itinerary response had no days, using fallback (destination: %s, length: %d)", req.Destination, len(text))
		return Fallback(req), ErrNoDays
	}

	it := trip.Itinerary{
		Destination:      req.Destination,
		StartDate:        req.StartDate.String(),
		EndDate:          req.StartDate.AddDays(days - 1).String(),
		TotalDays:        days,
		Budget:           req.Budget,
		DailyItineraries: plans,
	}
	it.Summarize()
	log.Printf("Itinerary generated (destination: %s, days: %d, total_cost: %.2f)", req.Destination, len(plans), it.Summary.TotalEstimatedCost)
	return it, nil
}
