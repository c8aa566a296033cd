package types

// RecipientSet is a deduplicated, insertion-ordered collection of reminder
// recipients keyed by user id. It is built per event by the recipient
// resolver, consumed immediately by the dispatch loop, and never persisted.
type RecipientSet struct {
	index map[int64]int
	users []User
}

// NewRecipientSet creates an empty RecipientSet.
func NewRecipientSet() *RecipientSet {
	return &RecipientSet{index: make(map[int64]int)}
}

// Add inserts the user unless a user with the same id is already present.
func (s *RecipientSet) Add(u User) {
	if _, ok := s.index[u.ID]; ok {
		return
	}
	s.index[u.ID] = len(s.users)
	s.users = append(s.users, u)
}

// AddAll inserts every user in order, deduplicating by id.
func (s *RecipientSet) AddAll(users []User) {
	for _, u := range users {
		s.Add(u)
	}
}

// Contains reports whether a user with the given id is in the set.
func (s *RecipientSet) Contains(id int64) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of distinct recipients.
func (s *RecipientSet) Len() int {
	return len(s.users)
}

// Users returns the recipients in insertion order. The returned slice is
// shared with the set and must not be mutated.
func (s *RecipientSet) Users() []User {
	return s.users
}

// Exclude returns a new set without any user whose id appears in ids.
func (s *RecipientSet) Exclude(ids []int64) *RecipientSet {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := NewRecipientSet()
	for _, u := range s.users {
		if _, skip := drop[u.ID]; !skip {
			out.Add(u)
		}
	}
	return out
}

// Intersect returns a new set keeping only users whose id appears in ids.
func (s *RecipientSet) Intersect(ids []int64) *RecipientSet {
	keep := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	out := NewRecipientSet()
	for _, u := range s.users {
		if _, ok := keep[u.ID]; ok {
			out.Add(u)
		}
	}
	return out
}
