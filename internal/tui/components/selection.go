package components

import "sort"

// Selection is the set of account ids checked in the table.
// The zero value is an empty selection.
type Selection map[string]struct{}

// NewSelection returns a selection containing ids
func NewSelection(ids ...string) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is selected
func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of selected ids
func (s Selection) Len() int {
	return len(s)
}

// IDs returns the selected ids in sorted order
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Toggle returns a copy with id added or removed
func (s Selection) Toggle(id string) Selection {
	next := s.clone()
	if next.Has(id) {
		delete(next, id)
	} else {
		next[id] = struct{}{}
	}
	return next
}

// ToggleAll returns the empty selection when s already holds exactly all of
// ids, and all of ids otherwise.
func (s Selection) ToggleAll(ids []string) Selection {
	if s.Equals(ids) {
		return Selection{}
	}
	return NewSelection(ids...)
}

// Equals reports whether s holds exactly the ids given
func (s Selection) Equals(ids []string) bool {
	all := NewSelection(ids...)
	if len(all) != len(s) {
		return false
	}
	for id := range s {
		if !all.Has(id) {
			return false
		}
	}
	return true
}

// Reconcile drops ids that are no longer present in ids. The receiver is
// returned unchanged when nothing was dropped.
func (s Selection) Reconcile(ids []string) Selection {
	if len(s) == 0 {
		return s
	}
	present := NewSelection(ids...)
	var next Selection
	for id := range s {
		if present.Has(id) {
			continue
		}
		if next == nil {
			next = s.clone()
		}
		delete(next, id)
	}
	if next == nil {
		return s
	}
	return next
}

func (s Selection) clone() Selection {
	next := make(Selection, len(s))
	for id := range s {
		next[id] = struct{}{}
	}
	return next
}
