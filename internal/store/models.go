package store

import "time"

type ExperimentState string

const (
	StateDraft    ExperimentState = "draft"
	StateRunning  ExperimentState = "running"
	StateComplete ExperimentState = "complete"
)

type GoalType string

const (
	GoalFunnel GoalType = "funnel"
	GoalTrend  GoalType = "trend"
)

const (
	EventExposure   = "exposure"
	EventConversion = "conversion"
	EventCount      = "count"
)

type Experiment struct {
	ID              int64
	Name            string
	Variants        []string // Decoded from JSON, index 0 is control
	GoalType        GoalType
	GoalDescription string  // Optional description of the goal event
	Baseline        float64 // Conversion rate percent (funnel) or count (trend) at creation
	State           ExperimentState

	// Frozen at creation (or by Resize while still a draft)
	RecommendedSampleSize  int
	RecommendedRunningTime float64 // days

	StartDate *time.Time
	EndDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ElapsedDays returns the days the experiment has been running as of now.
// Drafts return 0; completed experiments stop at their end date.
func (e *Experiment) ElapsedDays(now time.Time) float64 {
	if e.StartDate == nil {
		return 0
	}
	end := now
	if e.EndDate != nil {
		end = *e.EndDate
	}
	d := end.Sub(*e.StartDate).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

type Event struct {
	ID             int64
	ExperimentName string
	Variant        int
	EventType      string // "exposure", "conversion" or "count"
	VisitorID      string
	CreatedAt      time.Time
}

type VariantStats struct {
	Variant     int
	Exposures   int
	Conversions int
	Count       int
}

// Participant is one visitor exposed to an experiment.
type Participant struct {
	VisitorID string
	Variant   int
	Converted bool
	Count     int
	FirstSeen time.Time
}

type ParticipantQuery struct {
	Variant   *int
	Converted *bool
	Search    string
	Limit     int
	Offset    int
}

type ParticipantPage struct {
	Participants []Participant
	HasMore      bool
	NextOffset   int
}

type Annotation struct {
	ID             int64
	ExperimentName string
	Content        string
	DateMarker     time.Time
	Deleted        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type AnnotationQuery struct {
	Search string
	After  *time.Time
	Before *time.Time
}

// AnnotationUpdate holds the fields to change; nil means unchanged.
type AnnotationUpdate struct {
	Content    *string
	DateMarker *time.Time
}
