package tasks

import (
	"math"
	"time"
)

const (
	dayMillis     = 24 * 60 * 60 * 1000
	dueSoonWindow = 3 // days
)

// Stats summarises a task list.
type Stats struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Active         int `json:"active"`
	CompletionRate int `json:"completion_rate"` // percent
	DueSoon        int `json:"due_soon"`
}

// DaysUntil is the whole-day distance to due, rounded up from the millisecond delta.
func DaysUntil(due, now time.Time) int {
	ms := due.Sub(now).Milliseconds()
	d := int(math.Ceil(float64(ms) / dayMillis))
	if d == 0 {
		return 0 // normalise -0
	}
	return d
}

// IsDueSoon reports whether an open task falls due within [0, 3] days of now.
func IsDueSoon(t Task, now time.Time) bool {
	if t.Completed || t.DueDate == nil {
		return false
	}
	d := DaysUntil(*t.DueDate, now)
	return d >= 0 && d <= dueSoonWindow
}

// ComputeStats counts tasks as of now.
func ComputeStats(tasks []Task, now time.Time) Stats {
	s := countStats(tasks)
	s.DueSoon = countDueSoon(tasks, now)
	return s
}

func countStats(tasks []Task) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
	}
	s.Active = s.Total - s.Completed
	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}
	return s
}

func countDueSoon(tasks []Task, now time.Time) int {
	n := 0
	for _, t := range tasks {
		if IsDueSoon(t, now) {
			n++
		}
	}
	return n
}
