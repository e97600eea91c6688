package tasks

import (
	"fmt"
	"slices"
	"strings"

	"github.com/diewo77/go-backoffice/internal/models"
)

// ViewMode is how the task list is presented.
type ViewMode string

const (
	ModeList     ViewMode = "list"
	ModeCalendar ViewMode = "calendar"
)

// Toggle switches between list and calendar.
func (m ViewMode) Toggle() ViewMode {
	if m == ModeCalendar {
		return ModeList
	}
	return ModeCalendar
}

func (m ViewMode) Valid() bool { return m == ModeList || m == ModeCalendar }

// ParseViewMode accepts list or calendar.
func ParseViewMode(s string) (ViewMode, error) {
	m := ViewMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown view mode %q", s)
	}
	return m, nil
}

// PriorityColor maps a priority to the calendar colour.
func PriorityColor(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return "red"
	case models.PriorityMedium:
		return "amber"
	case models.PriorityLow:
		return "green"
	}
	return "gray"
}

// CalendarEntry is a task placed on its due day.
type CalendarEntry struct {
	Task  Task   `json:"task"`
	Date  string `json:"date"` // YYYY-MM-DD
	Color string `json:"color"`
}

// CalendarDay groups the entries due on one day.
type CalendarDay struct {
	Date    string          `json:"date"`
	Entries []CalendarEntry `json:"entries"`
}

// Calendar keeps tasks that have a due date and groups them by day, earliest first.
// Order within a day follows the input.
func Calendar(tasks []Task) []CalendarDay {
	byDate := map[string][]CalendarEntry{}
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		date := t.DueDate.Format("2006-01-02")
		byDate[date] = append(byDate[date], CalendarEntry{Task: t, Date: date, Color: PriorityColor(t.Priority)})
	}
	days := make([]CalendarDay, 0, len(byDate))
	for date, entries := range byDate {
		days = append(days, CalendarDay{Date: date, Entries: entries})
	}
	slices.SortFunc(days, func(a, b CalendarDay) int { return strings.Compare(a.Date, b.Date) })
	return days
}
