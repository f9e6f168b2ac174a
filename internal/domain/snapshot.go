package domain

// CorpusSnapshot accumulates the output of one fetch session.
// Records and Digests are parallel slices; Contributions is flat and may be
// longer or shorter than Records. Only the fetch loop appends; consumers
// treat the snapshot as read-only once fetching ends.
type CorpusSnapshot struct {
	Records       []Record
	Contributions []AuthorContribution
	Digests       []string

	// contribEnds[i] is len(Contributions) right after Records[i] was appended.
	contribEnds []int
}

// NewCorpusSnapshot returns an empty snapshot.
func NewCorpusSnapshot() *CorpusSnapshot {
	return &CorpusSnapshot{
		Records:       []Record{},
		Contributions: []AuthorContribution{},
		Digests:       []string{},
	}
}

// Append adds one record and its author contributions.
func (s *CorpusSnapshot) Append(record Record, contributions []AuthorContribution) {
	s.Records = append(s.Records, record)
	s.Contributions = append(s.Contributions, contributions...)
	s.Digests = append(s.Digests, record.Digest())
	s.contribEnds = append(s.contribEnds, len(s.Contributions))
}

// Len returns the number of records.
func (s *CorpusSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// IsEmpty reports whether no records were accumulated.
func (s *CorpusSnapshot) IsEmpty() bool {
	return s.Len() == 0
}

// Truncate drops every record beyond the first n, together with their
// digests and author contributions.
func (s *CorpusSnapshot) Truncate(n int) {
	if n < 0 || n >= len(s.Records) {
		return
	}
	s.Records = s.Records[:n]
	if n <= len(s.Digests) {
		s.Digests = s.Digests[:n]
	}
	if len(s.contribEnds) < n+1 {
		return
	}
	end := 0
	if n > 0 {
		end = s.contribEnds[n-1]
	}
	s.Contributions = s.Contributions[:end]
	s.contribEnds = s.contribEnds[:n]
}

// ContributionOwners returns, for each contribution, the index of the record
// it was appended with. Snapshots assembled without Append fall back to
// matching WorkID against OpenAlexID; unmatched contributions get -1.
func (s *CorpusSnapshot) ContributionOwners() []int {
	owners := make([]int, len(s.Contributions))
	if len(s.contribEnds) == len(s.Records) && (len(s.contribEnds) == 0 || s.contribEnds[len(s.contribEnds)-1] == len(s.Contributions)) {
		start := 0
		for i, end := range s.contribEnds {
			for j := start; j < end; j++ {
				owners[j] = i
			}
			start = end
		}
		return owners
	}

	byID := make(map[string]int, len(s.Records))
	for i := len(s.Records) - 1; i >= 0; i-- {
		byID[s.Records[i].OpenAlexID] = i
	}
	for j, c := range s.Contributions {
		idx, ok := byID[c.WorkID]
		if !ok {
			idx = -1
		}
		owners[j] = idx
	}
	return owners
}
