package selection

import "sort"

// Store maps issue ids to an "apply this fix" flag. The zero value is empty
// and ready to use.
type Store struct {
	flags map[int]bool
}

// Initialize replaces all state: every id starts selected.
func (s *Store) Initialize(ids []int) {
	s.flags = make(map[int]bool, len(ids))
	for _, id := range ids {
		s.flags[id] = true
	}
}

// Toggle flips id and returns its new value. An unknown id is left alone and
// reported with ok == false.
func (s *Store) Toggle(id int) (selected bool, ok bool) {
	v, ok := s.flags[id]
	if !ok {
		return false, false
	}
	s.flags[id] = !v
	return !v, true
}

func (s *Store) IsSelected(id int) bool { return s.flags[id] }

func (s *Store) Len() int { return len(s.flags) }

func (s *Store) Count() int {
	n := 0
	for _, v := range s.flags {
		if v {
			n++
		}
	}
	return n
}

// SelectedIDs returns the selected ids in ascending order.
func (s *Store) SelectedIDs() []int {
	out := make([]int, 0, len(s.flags))
	for id, v := range s.flags {
		if v {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// SelectedAmong returns the selected ids that are also in ids, ascending.
// Entries for ids outside the current issue set are ignored.
func (s *Store) SelectedAmong(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if s.flags[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// Snapshot copies the current flags.
func (s *Store) Snapshot() map[int]bool {
	out := make(map[int]bool, len(s.flags))
	for k, v := range s.flags {
		out[k] = v
	}
	return out
}
