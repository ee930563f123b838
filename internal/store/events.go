package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotRunning       = errors.New("experiment is not running")
	ErrInvalidVariant   = errors.New("invalid variant")
	ErrInvalidEventType = errors.New("invalid event type")
)

// ValidEventType reports whether t is one of the recorded event types.
func ValidEventType(t string) bool {
	return t == EventExposure || t == EventConversion || t == EventCount
}

// AcceptEvent checks that an event can be recorded against the experiment.
func (e *Experiment) AcceptEvent(variant int, eventType string) error {
	if !ValidEventType(eventType) {
		return fmt.Errorf("%w: %q", ErrInvalidEventType, eventType)
	}
	if e.State != StateRunning {
		return fmt.Errorf("%w (current state: %s)", ErrNotRunning, e.State)
	}
	if variant < 0 || variant >= len(e.Variants) {
		return fmt.Errorf("%w: %d (experiment has %d variants: 0-%d)", ErrInvalidVariant, variant, len(e.Variants), len(e.Variants)-1)
	}
	return nil
}
