package domain

import "time"

// Candidate is an item produced by a source reader before novelty is checked.
type Candidate struct {
	Title string
	Link  string
}

// Identity returns the dedup key of the candidate.
func (c Candidate) Identity() Identity {
	return Identity{Title: c.Title, Link: c.Link}
}

// Record is an ingested item. Records are append-only and never updated.
type Record struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity returns the dedup key of the record.
func (r Record) Identity() Identity {
	return Identity{Title: r.Title, Link: r.Link}
}

// Identity is the (title, link) pair; comparison is exact and case-sensitive.
type Identity struct {
	Title string
	Link  string
}

// IdentitySet holds every identity already stored.
type IdentitySet map[Identity]struct{}

// Has reports whether id is in the set.
func (s IdentitySet) Has(id Identity) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s IdentitySet) Add(id Identity) {
	s[id] = struct{}{}
}

// RunResult summarises one ingestion run.
type RunResult struct {
	Candidates int
	Inserted   int
	Broadcast  bool
}

// Delta is the set of records inserted by one run, in source order.
type Delta struct {
	Records []Record
}

// Total is the number of inserted records.
func (d Delta) Total() int {
	return len(d.Records)
}
