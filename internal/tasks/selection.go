package tasks

import "slices"

// Selection is a set of task ids picked for a bulk action.
type Selection map[uint]struct{}

// NewSelection builds a selection from ids.
func NewSelection(ids ...uint) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Selection) Has(id uint) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the selected ids in ascending order.
func (s Selection) IDs() []uint {
	ids := make([]uint, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ToggleSelect adds id, or removes it if already selected.
func (s Selection) ToggleSelect(id uint) {
	if s.Has(id) {
		delete(s, id)
		return
	}
	s[id] = struct{}{}
}

// SelectAll selects every task of view, or deselects them all when they were
// all selected already. Only the given view is considered, not the full list.
func (s Selection) SelectAll(view []Task) {
	if len(view) == 0 {
		return
	}
	all := true
	for _, t := range view {
		if !s.Has(t.ID) {
			all = false
			break
		}
	}
	for _, t := range view {
		if all {
			delete(s, t.ID)
		} else {
			s[t.ID] = struct{}{}
		}
	}
}

// Clear empties the selection.
func (s Selection) Clear() {
	clear(s)
}

// Retain drops ids that are no longer in tasks.
func (s Selection) Retain(tasks []Task) {
	present := NewSelection(IDs(tasks)...)
	for id := range s {
		if !present.Has(id) {
			delete(s, id)
		}
	}
}
