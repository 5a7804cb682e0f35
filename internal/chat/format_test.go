package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/siddhartha-04/itcprj/internal/domain"
)

func TestFormatCounts(t *testing.T) {
	st := testSnapshot().Buckets[0].Stats()
	assert.Equal(t, "Items: 3 | To Do: 2 | Doing: 1 | Done: 0 | Story Points: 8 | Remaining Work: 4", FormatCounts(st))
}

func TestFormatOpenVsClosed(t *testing.T) {
	b := domain.SprintBucket{Items: []domain.WorkItemSummary{
		{State: domain.StateToDo}, {State: domain.StateDoing}, {State: domain.StateDoing}, {State: domain.StateDone},
	}}
	assert.Equal(t, "Open items: 3 (To Do: 1 + Doing: 2)\nClosed items: 1", FormatOpenVsClosed(b))
}

func TestFormatOverview(t *testing.T) {
	got := FormatOverview(testSnapshot())

	assert.Equal(t, "📊 Sprint Overview (Last 2 Sprints)\n"+
		"\n1. Sprint 3\n  • Items: 3 | To Do: 2 | Doing: 1 | Done: 0 | Story Points: 8 | Remaining Work: 4\n"+
		"\n2. Sprint 2\n  • Items: 2 | To Do: 1 | Doing: 1 | Done: 0 | Story Points: 0 | Remaining Work: 0\n"+
		"\nLast updated: 2026-10-15 12:00:00", got)

	assert.Equal(t, msgNotLoaded, FormatOverview(nil))
}

func TestFormatCurrentSprint(t *testing.T) {
	got := FormatCurrentSprint(testSnapshot().Buckets[1])
	assert.Equal(t, "📋 Current Sprint: Sprint 2\n"+
		"Items: 2 | To Do: 1 | Doing: 1 | Done: 0 | Story Points: 0 | Remaining Work: 0\n"+
		"\n#10: Fix login [To Do] (Issue) Points: 0; Remaining: 0; Assigned: "+
		"\n#11: Fix logout [Doing] (Issue) Points: 0; Remaining: 0; Assigned: ", got)
}

func TestFormatItemLinesLimit(t *testing.T) {
	items := testSnapshot().Buckets[0].Items
	assert.Equal(t, "#28: Login page [Doing]\n#29: Checkout [To Do]", FormatItemLines(items, 2))
	assert.Empty(t, FormatItemLines(nil, 5))
}

func TestFormatShortlist(t *testing.T) {
	got := FormatShortlist([]domain.Candidate{{ID: 1, Title: "Login page"}, {ID: 2, Title: "Login API"}})
	assert.Equal(t, "Did you mean:\n#1 — Login page\n#2 — Login API", got)
}

func TestFormatCardDefaults(t *testing.T) {
	got := FormatCard(&domain.WorkItem{ID: 5})
	assert.Equal(t, "#5: (Untitled)\nType: Work Item\nState: Unknown\nAssigned: Unassigned", got)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<div>Hello<br/>world</div>", "Hello\nworld"},
		{"<p>Tom &amp; Jerry</p><p></p><p></p><p>End</p>", "Tom & Jerry\n\nEnd"},
		{"plain", "plain"},
		{`<a title="a > b" href="x">Spec</a> link`, "Spec link"},
		{`<script>alert("<b>x</b>")</script>Hi<style>p > b { color: red }</style> there`, "Hi there"},
		{"<ul><li>one</li><li>two &lt;3</li></ul>", "one\ntwo <3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripHTML(tt.in))
	}
}
