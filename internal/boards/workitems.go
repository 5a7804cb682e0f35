package boards

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/core"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/webapi"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/work"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/workitemtracking"

	"github.com/siddhartha-04/itcprj/internal/domain"
)

var summaryFields = []string{
	domain.FieldID,
	domain.FieldTitle,
	domain.FieldType,
	domain.FieldState,
	domain.FieldAssignedTo,
	domain.FieldDescription,
	domain.FieldPriority,
	domain.FieldStoryPoints,
	domain.FieldRemainingWork,
	domain.FieldIterationPath,
	domain.FieldCreatedDate,
}

const parentLinkType = "System.LinkTypes.Hierarchy-Reverse"

func toDomain(w *workitemtracking.WorkItem) *domain.WorkItem {
	if w == nil {
		return nil
	}
	wi := &domain.WorkItem{
		ID:      intOf(w.Id),
		Rev:     intOf(w.Rev),
		HTMLURL: htmlLink(w.Links),
	}
	if w.Fields != nil {
		wi.Fields = *w.Fields
	}
	for _, r := range all(w.Relations) {
		wi.Relations = append(wi.Relations, domain.Relation{Rel: str(r.Rel), URL: str(r.Url)})
	}
	return wi
}

func toSummary(w *workitemtracking.WorkItem) domain.WorkItemSummary {
	wi := toDomain(w)
	s := wi.Summary()
	if p, ok := wi.Fields[domain.FieldPriority].(float64); ok {
		n := int(p)
		s.Priority = &n
	}
	if raw, ok := wi.Fields[domain.FieldCreatedDate].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			s.CreatedDate = t
		}
	}
	return s
}

// htmlLink reads _links.html.href, present when links are expanded.
func htmlLink(links any) string {
	m, _ := links.(map[string]any)
	html, _ := m["html"].(map[string]any)
	href, _ := html["href"].(string)
	return href
}

func addField(ops []webapi.JsonPatchOperation, field string, value any) []webapi.JsonPatchOperation {
	return append(ops, webapi.JsonPatchOperation{
		Op:    ref(webapi.OperationValues.Add),
		Path:  ref("/fields/" + field),
		Value: value,
	})
}

func notFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// ListTeams returns the project's teams.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	var res *[]core.WebApiTeam
	err := c.call(ctx, "list teams", IsTransient, func(ctx context.Context, api *apiSet) (err error) {
		res, err = api.core.GetTeams(ctx, core.GetTeamsArgs{ProjectId: &c.project})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}

	teams := make([]Team, 0, len(all(res)))
	for _, t := range all(res) {
		teams = append(teams, Team{ID: uuidString(t.Id), Name: str(t.Name)})
	}
	return teams, nil
}

// FetchIterations returns the team's iterations.
func (c *Client) FetchIterations(ctx context.Context, teamID string) ([]domain.Iteration, error) {
	var res *[]work.TeamSettingsIteration
	err := c.call(ctx, "fetch iterations", IsTransient, func(ctx context.Context, api *apiSet) (err error) {
		res, err = api.work.GetTeamIterations(ctx, work.GetTeamIterationsArgs{Project: &c.project, Team: &teamID})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch iterations: %w", err)
	}

	out := make([]domain.Iteration, 0, len(all(res)))
	for _, it := range all(res) {
		iteration := domain.Iteration{
			ID:   uuidString(it.Id),
			Name: str(it.Name),
			Path: str(it.Path),
		}
		if a := it.Attributes; a != nil {
			if a.StartDate != nil {
				iteration.StartDate = ref(a.StartDate.Time)
			}
			if a.FinishDate != nil {
				iteration.FinishDate = ref(a.FinishDate.Time)
			}
		}
		out = append(out, iteration)
	}
	return out, nil
}

// FetchIterationItems returns the items of one team iteration.
func (c *Client) FetchIterationItems(ctx context.Context, teamID, iterationID string) ([]domain.WorkItemSummary, error) {
	iid, err := uuid.Parse(iterationID)
	if err != nil {
		return nil, fmt.Errorf("fetch iteration %q items: invalid iteration id: %w", iterationID, err)
	}

	var res *work.IterationWorkItems
	err = c.call(ctx, "fetch iteration items", IsTransient, func(ctx context.Context, api *apiSet) (err error) {
		res, err = api.work.GetIterationWorkItems(ctx, work.GetIterationWorkItemsArgs{
			Project:     &c.project,
			Team:        &teamID,
			IterationId: &iid,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch iteration %s items: %w", iterationID, err)
	}

	seen := make(map[int]bool)
	var ids []int
	if res != nil {
		for _, rel := range all(res.WorkItemRelations) {
			if rel.Target == nil {
				continue
			}
			id := intOf(rel.Target.Id)
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return c.GetWorkItems(ctx, ids)
}

// FetchRecentItems returns up to limit most recently created items project-wide.
func (c *Client) FetchRecentItems(ctx context.Context, limit int) ([]domain.WorkItemSummary, error) {
	q := newWIQL().order("[System.CreatedDate] DESC")
	return c.queryItems(ctx, q, limit)
}

// GetWorkItem returns one item with relations and links.
func (c *Client) GetWorkItem(ctx context.Context, id int) (*domain.WorkItem, error) {
	var res *workitemtracking.WorkItem
	err := c.call(ctx, "get work item", IsTransient, func(ctx context.Context, api *apiSet) (err error) {
		res, err = api.wit.GetWorkItem(ctx, workitemtracking.GetWorkItemArgs{
			Id:      &id,
			Project: &c.project,
			Expand:  ref(workitemtracking.WorkItemExpandValues.All),
		})
		return err
	})
	if notFound(err) || (err == nil && res == nil) {
		return nil, fmt.Errorf("get work item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get work item %d: %w", id, err)
	}
	return toDomain(res), nil
}

// GetWorkItems returns summaries for ids, batching requests as the API requires.
// Ids the backend no longer knows are skipped.
func (c *Client) GetWorkItems(ctx context.Context, ids []int) ([]domain.WorkItemSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]domain.WorkItemSummary, 0, len(ids))
	for start := 0; start < len(ids); start += maxBatchIDs {
		end := min(start+maxBatchIDs, len(ids))
		batch, err := c.fetchBatch(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, ids []int) ([]domain.WorkItemSummary, error) {
	batch := slices.Clone(ids)
	fields := slices.Clone(summaryFields)

	var res *[]workitemtracking.WorkItem
	err := c.call(ctx, "fetch work item details", IsTransient, func(ctx context.Context, api *apiSet) (err error) {
		res, err = api.wit.GetWorkItems(ctx, workitemtracking.GetWorkItemsArgs{
			Ids:         &batch,
			Project:     &c.project,
			Fields:      &fields,
			ErrorPolicy: ref(workitemtracking.WorkItemErrorPolicyValues.Omit),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch work item details: %w", err)
	}

	out := make([]domain.WorkItemSummary, 0, len(all(res)))
	for _, w := range all(res) {
		if w.Id == nil {
			continue
		}
		out = append(out, toSummary(&w))
	}
	return out, nil
}

// queryItems runs a WIQL query and loads the first limit results.
func (c *Client) queryItems(ctx context.Context, q *wiqlQuery, limit int) ([]domain.WorkItemSummary, error) {
	args := workitemtracking.QueryByWiqlArgs{
		Wiql:    &workitemtracking.Wiql{Query: ref(q.String())},
		Project: &c.project,
	}
	if limit > 0 {
		args.Top = ref(limit)
	}

	var res *workitemtracking.WorkItemQueryResult
	err := c.call(ctx, "run wiql query", IsTransient, func(ctx context.Context, api *apiSet) (err error) {
		res, err = api.wit.QueryByWiql(ctx, args)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("run wiql query: %w", err)
	}

	var ids []int
	if res != nil {
		for _, w := range all(res.WorkItems) {
			ids = append(ids, intOf(w.Id))
			if limit > 0 && len(ids) == limit {
				break
			}
		}
	}
	return c.GetWorkItems(ctx, ids)
}

// SearchByKeyword searches titles and descriptions project-wide.
func (c *Client) SearchByKeyword(ctx context.Context, term string) ([]domain.WorkItemSummary, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	return c.queryItems(ctx, newWIQL().where(keywordCondition(term)), maxQueryResults)
}

// ListLatest returns the most recently changed items of a type.
func (c *Client) ListLatest(ctx context.Context, itemType string) ([]domain.WorkItemSummary, error) {
	return c.queryItems(ctx, newWIQL().ofType(itemType), maxQueryResults)
}

// ListInIteration returns items UNDER an iteration path.
func (c *Client) ListInIteration(ctx context.Context, iterationPath, itemType string) ([]domain.WorkItemSummary, error) {
	if iterationPath == "" {
		return nil, nil
	}
	return c.queryItems(ctx, newWIQL().under(iterationPath).ofType(itemType), 0)
}

// ListUnassignedToDo returns unassigned items in To Do.
func (c *Client) ListUnassignedToDo(ctx context.Context, itemType, iterationPath string) ([]domain.WorkItemSummary, error) {
	q := newWIQL().
		under(iterationPath).
		ofType(itemType).
		where(fmt.Sprintf("[System.State] = '%s'", domain.StateToDo)).
		where("[System.AssignedTo] = ''")
	return c.queryItems(ctx, q, 0)
}

// CreateIssue creates an Issue work item.
func (c *Client) CreateIssue(ctx context.Context, in NewIssue) (*domain.WorkItem, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("create issue: title is required")
	}
	ops := addField(nil, domain.FieldTitle, title)
	if in.Description != "" {
		ops = addField(ops, domain.FieldDescription, in.Description)
	}
	if in.AcceptanceCriteria != "" {
		ops = addField(ops, domain.FieldAcceptanceCriteria, in.AcceptanceCriteria)
	}
	if in.StoryPoints > 0 {
		ops = addField(ops, domain.FieldStoryPoints, in.StoryPoints)
	}
	if in.AssignedTo != "" {
		ops = addField(ops, domain.FieldAssignedTo, in.AssignedTo)
	}
	if in.IterationPath != "" {
		ops = addField(ops, domain.FieldIterationPath, in.IterationPath)
	}
	return c.create(ctx, domain.TypeIssue, ops)
}

// CreateTask creates a Task work item, optionally parented.
func (c *Client) CreateTask(ctx context.Context, in NewTask) (*domain.WorkItem, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("create task: title is required")
	}
	ops := addField(nil, domain.FieldTitle, title)
	if in.Description != "" {
		ops = addField(ops, domain.FieldDescription, in.Description)
	}
	if in.AssignedTo != "" {
		ops = addField(ops, domain.FieldAssignedTo, in.AssignedTo)
	}
	if in.RemainingWork > 0 {
		ops = addField(ops, domain.FieldRemainingWork, in.RemainingWork)
	}
	if in.IterationPath != "" {
		ops = addField(ops, domain.FieldIterationPath, in.IterationPath)
	}
	if in.ParentID > 0 {
		ops = append(ops, webapi.JsonPatchOperation{
			Op:   ref(webapi.OperationValues.Add),
			Path: ref("/relations/-"),
			Value: domain.Relation{
				Rel: parentLinkType,
				URL: c.orgURL + "/_apis/wit/workItems/" + strconv.Itoa(in.ParentID),
			},
		})
	}
	return c.create(ctx, domain.TypeTask, ops)
}

// create is not idempotent: it retries only failures known to precede processing.
func (c *Client) create(ctx context.Context, itemType string, ops []webapi.JsonPatchOperation) (*domain.WorkItem, error) {
	var res *workitemtracking.WorkItem
	err := c.call(ctx, "create work item", retryableCreate, func(ctx context.Context, api *apiSet) (err error) {
		res, err = api.wit.CreateWorkItem(ctx, workitemtracking.CreateWorkItemArgs{
			Document: &ops,
			Project:  &c.project,
			Type:     &itemType,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", strings.ToLower(itemType), err)
	}
	if res == nil {
		return nil, fmt.Errorf("create %s: empty response", strings.ToLower(itemType))
	}
	return toDomain(res), nil
}

// UpdateState sets System.State.
func (c *Client) UpdateState(ctx context.Context, id int, state string) error {
	return c.patch(ctx, id, addField(nil, domain.FieldState, state))
}

// UpdateIteration sets System.IterationPath.
func (c *Client) UpdateIteration(ctx context.Context, id int, iterationPath string) error {
	return c.patch(ctx, id, addField(nil, domain.FieldIterationPath, iterationPath))
}

func (c *Client) patch(ctx context.Context, id int, ops []webapi.JsonPatchOperation) error {
	err := c.call(ctx, "update work item", IsTransient, func(ctx context.Context, api *apiSet) error {
		_, err := api.wit.UpdateWorkItem(ctx, workitemtracking.UpdateWorkItemArgs{
			Document: &ops,
			Id:       &id,
			Project:  &c.project,
		})
		return err
	})
	if notFound(err) {
		return fmt.Errorf("update work item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update work item %d: %w", id, err)
	}
	return nil
}
