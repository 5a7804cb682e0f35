package domain

import "time"

// Iteration is a team iteration as returned by the backend.
type Iteration struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	FinishDate *time.Time `json:"finishDate,omitempty"`
}

// SprintBucket is one loaded iteration and its items. It is never mutated after construction.
type SprintBucket struct {
	SprintName string            `json:"sprintName"`
	SprintID   string            `json:"sprintId"`
	Path       string            `json:"path"`
	Items      []WorkItemSummary `json:"items"`
}

// Stats aggregates item counts and effort for a bucket.
type Stats struct {
	Total          int     `json:"total"`
	ToDo           int     `json:"todo"`
	Doing          int     `json:"doing"`
	Done           int     `json:"done"`
	UnassignedToDo int     `json:"unassignedTodo"`
	StoryPoints    float64 `json:"storyPoints"`
	RemainingWork  float64 `json:"remainingWork"`
}

// Open returns the number of items not yet done.
func (s Stats) Open() int {
	return s.ToDo + s.Doing
}

// Stats computes the bucket's aggregate counts.
func (b SprintBucket) Stats() Stats {
	st := Stats{Total: len(b.Items)}
	for _, it := range b.Items {
		switch it.State {
		case StateToDo:
			st.ToDo++
			if it.IsUnassigned() {
				st.UnassignedToDo++
			}
		case StateDoing:
			st.Doing++
		case StateDone:
			st.Done++
		}
		st.StoryPoints += it.StoryPoints
		st.RemainingWork += it.RemainingWork
	}
	return st
}

// Snapshot is an immutable view of the sprint cache. Buckets[0] is the current sprint.
type Snapshot struct {
	Buckets     []SprintBucket `json:"buckets"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// Current returns the first bucket, if any.
func (s *Snapshot) Current() (SprintBucket, bool) {
	if s == nil || len(s.Buckets) == 0 {
		return SprintBucket{}, false
	}
	return s.Buckets[0], true
}

// ItemCount returns the number of items across all buckets.
func (s *Snapshot) ItemCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, b := range s.Buckets {
		n += len(b.Items)
	}
	return n
}
