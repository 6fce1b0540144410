package batch

import (
	"errors"
	"math"
	"time"
)

var (
	ErrJobNotFound  = errors.New("batch job not found")
	ErrShuttingDown = errors.New("batch coordinator is shutting down")
)

type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Descriptor names one generated report.
type Descriptor struct {
	Filename      string  `json:"filename"`
	TripID        string  `json:"trip_id"`
	PingCount     int     `json:"ping_count"`
	TotalDistance float64 `json:"total_distance"`
	AvgSpeed      float64 `json:"avg_speed"`
}

// Skipped records why a trip produced no report.
type Skipped struct {
	TripID string `json:"trip_id"`
	Reason string `json:"reason"`
}

type Job struct {
	ID        string
	State     State
	Total     int
	Completed int
	Reports   []Descriptor
	Skipped   []Skipped
	Err       string
	CreatedAt time.Time
}

type Status struct {
	Status         State        `json:"status"`
	Progress       float64      `json:"progress"`
	TotalTrips     int          `json:"total_trips"`
	CompletedTrips int          `json:"completed_trips"`
	PDFs           []Descriptor `json:"pdfs"`
	Skipped        []Skipped    `json:"skipped"`
	Error          string       `json:"error"`
}

// Event is pushed to progress subscribers after every trip and once more
// when the job finishes.
type Event struct {
	BatchID        string  `json:"batch_id"`
	Status         State   `json:"status"`
	Progress       float64 `json:"progress"`
	TotalTrips     int     `json:"total_trips"`
	CompletedTrips int     `json:"completed_trips"`
	TripID         string  `json:"trip_id,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// Progress is completed/total as a percentage rounded to two decimals.
func (j Job) Progress() float64 {
	if j.Total <= 0 {
		return 0
	}
	return math.Round(float64(j.Completed)/float64(j.Total)*100*100) / 100
}

func (j Job) Status() Status {
	pdfs := j.Reports
	if pdfs == nil {
		pdfs = []Descriptor{}
	}
	skipped := j.Skipped
	if skipped == nil {
		skipped = []Skipped{}
	}
	return Status{
		Status:         j.State,
		Progress:       j.Progress(),
		TotalTrips:     j.Total,
		CompletedTrips: j.Completed,
		PDFs:           pdfs,
		Skipped:        skipped,
		Error:          j.Err,
	}
}

func (j Job) event(tripID string) Event {
	return Event{
		BatchID:        j.ID,
		Status:         j.State,
		Progress:       j.Progress(),
		TotalTrips:     j.Total,
		CompletedTrips: j.Completed,
		TripID:         tripID,
		Error:          j.Err,
	}
}
