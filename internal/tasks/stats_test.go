package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDueSoonBoundaries(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"due now", Task{DueDate: ptr(now)}, true},
		{"due earlier today", Task{DueDate: ptr(now.Add(-6 * time.Hour))}, true},
		{"due yesterday", Task{DueDate: ptr(now.Add(-30 * time.Hour))}, false},
		{"due in exactly 3 days", Task{DueDate: ptr(now.Add(72 * time.Hour))}, true},
		{"due in 2.5 days", Task{DueDate: ptr(now.Add(60 * time.Hour))}, true},
		{"due in 4 days", Task{DueDate: ptr(now.Add(96 * time.Hour))}, false},
		{"due just over 3 days", Task{DueDate: ptr(now.Add(72*time.Hour + time.Minute))}, false},
		{"completed", Task{DueDate: ptr(now), Completed: true}, false},
		{"no due date", Task{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDueSoon(tt.task, now))
		})
	}
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil, base))

	s := ComputeStats(fixture(), base)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 4, s.Active)
	assert.Equal(t, s.Total, s.Completed+s.Active)
	assert.Equal(t, 20, s.CompletionRate)
	assert.Equal(t, 2, s.DueSoon)

	third := []Task{{Completed: true}, {}, {}}
	assert.Equal(t, 33, ComputeStats(third, base).CompletionRate)
	twoThirds := []Task{{Completed: true}, {Completed: true}, {}}
	assert.Equal(t, 67, ComputeStats(twoThirds, base).CompletionRate)
}

func TestMemoMatchesRecompute(t *testing.T) {
	memo := NewMemo(time.Minute)
	tasks := fixture()
	v := Version(tasks)

	for i := 0; i < 2; i++ {
		for _, s := range []Sort{SortNewest, SortDueDate, SortPriority} {
			assert.Equal(t, DeriveView(tasks, FilterActive, "", s), memo.View(v, tasks, FilterActive, "", s))
		}
		assert.Equal(t, ComputeStats(tasks, base), memo.Stats(v, tasks, base))
	}
	hits, misses := memo.Counters()
	assert.Equal(t, uint64(4), hits)
	assert.Equal(t, uint64(4), misses)
}

func TestMemoViewIsACopy(t *testing.T) {
	memo := NewMemo(time.Minute)
	tasks := fixture()
	v := Version(tasks)
	first := memo.View(v, tasks, FilterAll, "", SortOldest)
	first[0].Title = "mutated"
	second := memo.View(v, tasks, FilterAll, "", SortOldest)
	assert.Equal(t, "Write report", second[0].Title)
}

func TestMemoExpiry(t *testing.T) {
	memo := NewMemo(time.Second)
	clock := base
	memo.now = func() time.Time { return clock }
	tasks := fixture()
	v := Version(tasks)

	memo.View(v, tasks, FilterAll, "", SortNewest)
	clock = clock.Add(2 * time.Second)
	memo.View(v, tasks, FilterAll, "", SortNewest)
	_, misses := memo.Counters()
	assert.Equal(t, uint64(2), misses)

	memo.Sweep()
	memo.mu.RLock()
	defer memo.mu.RUnlock()
	assert.Len(t, memo.entries, 1)
}

func TestVersionChangesWithContent(t *testing.T) {
	tasks := fixture()
	v := Version(tasks)
	assert.Equal(t, v, Version(fixture()))

	changed := fixture()
	changed[2].Completed = true
	assert.NotEqual(t, v, Version(changed))

	redated := fixture()
	redated[0].DueDate = ptr(base)
	assert.NotEqual(t, v, Version(redated))

	described := fixture()
	described[0].Description = ptr("")
	assert.NotEqual(t, v, Version(described))
}
