// Package tasks implements the todo manager: the user's task list, the derived
// filtered and sorted view, statistics, selection and bulk mutations.
package tasks

import (
	"slices"
	"strings"

	"github.com/diewo77/go-backoffice/internal/models"
)

// Task is a todo row as loaded from the store.
type Task = models.Todo

// Filter selects tasks by completion state.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Sort orders the derived view.
type Sort string

const (
	SortNewest   Sort = "newest"
	SortOldest   Sort = "oldest"
	SortDueDate  Sort = "dueDate"
	SortPriority Sort = "priority"
)

func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterActive, FilterCompleted:
		return true
	}
	return false
}

func (s Sort) Valid() bool {
	switch s {
	case SortNewest, SortOldest, SortDueDate, SortPriority:
		return true
	}
	return false
}

// priorityRank puts high first and unset last.
func priorityRank(p models.Priority) int {
	switch p {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	case models.PriorityLow:
		return 2
	}
	return 3
}

func matches(t Task, filter Filter, needle string) bool {
	switch filter {
	case FilterActive:
		if t.Completed {
			return false
		}
	case FilterCompleted:
		if !t.Completed {
			return false
		}
	}
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Title), needle) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), needle)
}

// DeriveView filters by completion, then by a case-insensitive substring of
// title or description, then stable-sorts. The input slice is not modified.
// An unknown filter behaves as all and an unknown sort as newest.
func DeriveView(tasks []Task, filter Filter, search string, sort Sort) []Task {
	if !sort.Valid() {
		sort = SortNewest
	}
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if matches(t, filter, needle) {
			out = append(out, t)
		}
	}

	switch sort {
	case SortNewest:
		slices.SortStableFunc(out, func(a, b Task) int { return b.CreatedAt.Compare(a.CreatedAt) })
	case SortOldest:
		slices.SortStableFunc(out, func(a, b Task) int { return a.CreatedAt.Compare(b.CreatedAt) })
	case SortDueDate:
		slices.SortStableFunc(out, func(a, b Task) int {
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return 0
			case a.DueDate == nil:
				return 1
			case b.DueDate == nil:
				return -1
			}
			return a.DueDate.Compare(*b.DueDate)
		})
	case SortPriority:
		slices.SortStableFunc(out, func(a, b Task) int { return priorityRank(a.Priority) - priorityRank(b.Priority) })
	}
	return out
}

// IDs lists the ids of tasks in order.
func IDs(tasks []Task) []uint {
	ids := make([]uint, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
