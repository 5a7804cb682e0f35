package llm

import (
	"time"

	"github.com/siddhartha-04/itcprj/internal/domain"
)

const (
	maxContextItems = 8
	maxTitleRunes   = 140
)

// ContextItem is one current-sprint item passed to the model.
type ContextItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	State string `json:"state"`
	Type  string `json:"type"`
}

// SprintAggregate summarises one recent sprint.
type SprintAggregate struct {
	SprintName string `json:"sprintName"`
	Items      int    `json:"items"`
	ToDo       int    `json:"todo"`
	Doing      int    `json:"doing"`
	Done       int    `json:"done"`
}

// CompactContext is the small, bounded view of the cache sent with each prompt.
type CompactContext struct {
	Now                time.Time         `json:"now"`
	TotalSprintsCached int               `json:"totalSprintsCached"`
	CurrentSprint      string            `json:"currentSprint,omitempty"`
	CurrentSprintItems []ContextItem     `json:"currentSprintItems"`
	CurrentSprintStats domain.Stats      `json:"currentSprintStats"`
	LastTwoSprints     []SprintAggregate `json:"lastTwoSprints"`
}

// BuildContext derives a CompactContext from a snapshot. A nil snapshot yields an empty context.
func BuildContext(snap *domain.Snapshot, now time.Time) CompactContext {
	cc := CompactContext{Now: now}
	if snap == nil {
		return cc
	}
	cc.TotalSprintsCached = len(snap.Buckets)

	if cur, ok := snap.Current(); ok {
		cc.CurrentSprint = cur.SprintName
		cc.CurrentSprintStats = cur.Stats()
		for _, it := range cur.Items[:min(len(cur.Items), maxContextItems)] {
			cc.CurrentSprintItems = append(cc.CurrentSprintItems, ContextItem{
				ID:    it.ID,
				Title: truncate(it.Title, maxTitleRunes),
				State: it.State,
				Type:  it.Type,
			})
		}
	}

	for _, b := range snap.Buckets[:min(len(snap.Buckets), 2)] {
		st := b.Stats()
		cc.LastTwoSprints = append(cc.LastTwoSprints, SprintAggregate{
			SprintName: b.SprintName,
			Items:      st.Total,
			ToDo:       st.ToDo,
			Doing:      st.Doing,
			Done:       st.Done,
		})
	}
	return cc
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
