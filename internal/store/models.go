package store

import (
	"time"

	"github.com/lulo-labs/lulo/internal/plan"
)

// Request is one dispatched automation request and its outcome.
type Request struct {
	ID        int
	ChatID    string
	Input     string
	Reply     string
	Success   bool
	Actions   []plan.ExecutionResult
	CreatedAt time.Time
}

// Task is a stored request that is re-planned and re-dispatched on an
// interval. An interval of zero means run once.
type Task struct {
	ID              int
	ChatID          string
	Request         string
	IntervalSeconds int
}
