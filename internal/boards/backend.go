// Package boards talks to Azure DevOps Boards through the azure-devops-go-api SDK.
package boards

import (
	"context"
	"errors"
	"fmt"

	"github.com/siddhartha-04/itcprj/internal/domain"
)

// ErrNotFound is returned when the backend reports a missing work item.
var ErrNotFound = errors.New("work item not found")

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("azure devops returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("azure devops returned status %d: %s", e.StatusCode, e.Body)
}

// Team is a project team.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewIssue describes an Issue to create. Zero values are omitted.
type NewIssue struct {
	Title              string
	Description        string
	AcceptanceCriteria string
	StoryPoints        float64
	AssignedTo         string
	IterationPath      string
}

// NewTask describes a Task to create. Zero values are omitted.
type NewTask struct {
	Title         string
	Description   string
	AssignedTo    string
	RemainingWork float64
	IterationPath string
	ParentID      int
}

// Backend is the set of Boards operations the assistant depends on.
type Backend interface {
	// ListTeams returns the project's teams.
	ListTeams(ctx context.Context) ([]Team, error)

	// FetchIterations returns the team's configured iterations.
	FetchIterations(ctx context.Context, teamID string) ([]domain.Iteration, error)

	// FetchIterationItems returns the items assigned to one team iteration.
	FetchIterationItems(ctx context.Context, teamID, iterationID string) ([]domain.WorkItemSummary, error)

	// FetchRecentItems returns up to limit most recently created items project-wide.
	FetchRecentItems(ctx context.Context, limit int) ([]domain.WorkItemSummary, error)

	// GetWorkItem returns the full item with relations, or ErrNotFound.
	GetWorkItem(ctx context.Context, id int) (*domain.WorkItem, error)

	// GetWorkItems returns summaries for the given ids, in backend order.
	GetWorkItems(ctx context.Context, ids []int) ([]domain.WorkItemSummary, error)

	// SearchByKeyword runs a project-wide title/description text search.
	SearchByKeyword(ctx context.Context, term string) ([]domain.WorkItemSummary, error)

	// ListLatest returns recently changed items; an empty itemType means any type.
	ListLatest(ctx context.Context, itemType string) ([]domain.WorkItemSummary, error)

	// ListInIteration returns items UNDER the iteration path; an empty itemType means any type.
	ListInIteration(ctx context.Context, iterationPath, itemType string) ([]domain.WorkItemSummary, error)

	// ListUnassignedToDo returns unassigned To Do items, optionally scoped by type and iteration.
	ListUnassignedToDo(ctx context.Context, itemType, iterationPath string) ([]domain.WorkItemSummary, error)

	// CreateIssue creates an Issue.
	CreateIssue(ctx context.Context, in NewIssue) (*domain.WorkItem, error)

	// CreateTask creates a Task, linking it to ParentID when set.
	CreateTask(ctx context.Context, in NewTask) (*domain.WorkItem, error)

	// UpdateState moves an item to a new state.
	UpdateState(ctx context.Context, id int, state string) error

	// UpdateIteration moves an item to another iteration path.
	UpdateIteration(ctx context.Context, id int, iterationPath string) error
}

// Ensure Client implements Backend.
var _ Backend = (*Client)(nil)
