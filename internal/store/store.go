package store

import (
	"context"
	"time"
)

// Store defines the interface for experiment storage operations
type Store interface {
	// Experiment operations
	CreateExperiment(ctx context.Context, exp *Experiment) (*Experiment, error)
	GetExperiment(ctx context.Context, name string) (*Experiment, error)
	ListExperiments(ctx context.Context) ([]*Experiment, error)
	Launch(ctx context.Context, name string, at time.Time) error
	End(ctx context.Context, name string, at time.Time) error
	Resize(ctx context.Context, name string, baseline float64, sampleSize int, runningTime float64) error
	DeleteExperiment(ctx context.Context, name string) error

	// Event operations
	RecordEvent(ctx context.Context, name string, variant int, eventType string, visitorID string) error
	GetVariantStats(ctx context.Context, name string) ([]VariantStats, error)
	GetEvents(ctx context.Context, name string) ([]*Event, error)
	ListParticipants(ctx context.Context, name string, q ParticipantQuery) (*ParticipantPage, error)

	// Annotations
	CreateAnnotation(ctx context.Context, name, content string, dateMarker time.Time) (*Annotation, error)
	GetAnnotation(ctx context.Context, id int64) (*Annotation, error)
	ListAnnotations(ctx context.Context, name string, q AnnotationQuery) ([]*Annotation, error)
	UpdateAnnotation(ctx context.Context, id int64, u AnnotationUpdate) (*Annotation, error)
	DeleteAnnotation(ctx context.Context, id int64) error
	RestoreAnnotation(ctx context.Context, id int64) error

	// Lifecycle
	Close() error
}
