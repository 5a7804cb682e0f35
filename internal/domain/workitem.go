// Package domain contains core domain types for the Boards assistant.
package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnassignedName is the display name used when a work item has no assignee.
const UnassignedName = "Unassigned"

// Work item types the assistant knows by name.
const (
	TypeIssue = "Issue"
	TypeTask  = "Task"
	TypeBug   = "Bug"
)

// Field reference names used by the Boards REST API.
const (
	FieldID                 = "System.Id"
	FieldTitle              = "System.Title"
	FieldType               = "System.WorkItemType"
	FieldState              = "System.State"
	FieldAssignedTo         = "System.AssignedTo"
	FieldDescription        = "System.Description"
	FieldIterationPath      = "System.IterationPath"
	FieldCreatedDate        = "System.CreatedDate"
	FieldReproSteps         = "Microsoft.VSTS.TCM.ReproSteps"
	FieldAcceptanceCriteria = "Microsoft.VSTS.Common.AcceptanceCriteria"
	FieldPriority           = "Microsoft.VSTS.Common.Priority"
	FieldStoryPoints        = "Microsoft.VSTS.Scheduling.StoryPoints"
	FieldRemainingWork      = "Microsoft.VSTS.Scheduling.RemainingWork"
)

// WorkItemSummary is the lightweight projection of a work item held in the sprint cache.
type WorkItemSummary struct {
	ID            int       `json:"id"`
	Title         string    `json:"title"`
	Type          string    `json:"type"`
	State         string    `json:"state"`
	AssignedTo    string    `json:"assignedTo"`
	Description   string    `json:"description,omitempty"`
	Priority      *int      `json:"priority,omitempty"`
	StoryPoints   float64   `json:"storyPoints"`
	RemainingWork float64   `json:"remainingWork"`
	IterationPath string    `json:"iterationPath"`
	CreatedDate   time.Time `json:"createdDate,omitzero"`
}

// IsUnassigned reports whether nobody owns the item.
func (s WorkItemSummary) IsUnassigned() bool {
	return s.AssignedTo == "" || s.AssignedTo == UnassignedName
}

// Relation is a link from one work item to another resource.
type Relation struct {
	Rel string `json:"rel"`
	URL string `json:"url"`
}

// WorkItem is the full backend representation, fetched on demand and never cached.
type WorkItem struct {
	ID        int            `json:"id"`
	Rev       int            `json:"rev,omitempty"`
	Fields    map[string]any `json:"fields"`
	Relations []Relation     `json:"relations,omitempty"`
	HTMLURL   string         `json:"-"`
}

var workItemURLPattern = regexp.MustCompile(`(?i)/workitems/(\d+)`)

// StringField returns a string field or "" when absent.
func (w *WorkItem) StringField(name string) string {
	if w == nil || w.Fields == nil {
		return ""
	}
	switch v := w.Fields[name].(type) {
	case string:
		return v
	case map[string]any:
		// Identity fields carry a displayName.
		if dn, ok := v["displayName"].(string); ok {
			return dn
		}
	}
	return ""
}

// NumberField returns a numeric field or 0 when absent.
func (w *WorkItem) NumberField(name string) float64 {
	if w == nil || w.Fields == nil {
		return 0
	}
	switch v := w.Fields[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Title returns System.Title.
func (w *WorkItem) Title() string { return w.StringField(FieldTitle) }

// Type returns System.WorkItemType.
func (w *WorkItem) Type() string { return w.StringField(FieldType) }

// State returns System.State.
func (w *WorkItem) State() string { return w.StringField(FieldState) }

// AssignedTo returns the assignee display name or UnassignedName.
func (w *WorkItem) AssignedTo() string {
	if name := w.StringField(FieldAssignedTo); name != "" {
		return name
	}
	return UnassignedName
}

// Description returns the description, or the repro steps for bugs.
func (w *WorkItem) Description() string {
	if d := w.StringField(FieldDescription); strings.TrimSpace(d) != "" {
		return d
	}
	return w.StringField(FieldReproSteps)
}

// Summary projects the item onto a WorkItemSummary.
func (w *WorkItem) Summary() WorkItemSummary {
	return WorkItemSummary{
		ID:            w.ID,
		Title:         w.Title(),
		Type:          w.Type(),
		State:         w.State(),
		AssignedTo:    w.AssignedTo(),
		Description:   w.StringField(FieldDescription),
		StoryPoints:   w.NumberField(FieldStoryPoints),
		RemainingWork: w.NumberField(FieldRemainingWork),
		IterationPath: w.StringField(FieldIterationPath),
	}
}

// ChildIDs returns the ids of hierarchy-forward (child) relations.
func (w *WorkItem) ChildIDs() []int {
	var ids []int
	for _, r := range w.Relations {
		if !strings.Contains(strings.ToLower(r.Rel), "hierarchy-forward") {
			continue
		}
		if id, ok := idFromURL(r.URL); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// RelatedIDs returns the ids of every relation pointing at a work item.
func (w *WorkItem) RelatedIDs() []int {
	var ids []int
	for _, r := range w.Relations {
		if id, ok := idFromURL(r.URL); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func idFromURL(u string) (int, bool) {
	m := workItemURLPattern.FindStringSubmatch(u)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Candidate is one entry in a disambiguation shortlist.
type Candidate struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}
