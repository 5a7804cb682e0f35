package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/siddhartha-04/itcprj/internal/boards"
	"github.com/siddhartha-04/itcprj/internal/domain"
	"github.com/siddhartha-04/itcprj/internal/sprints"
)

func (e *Engine) handleCancel(_ context.Context, _ *turn) (string, error) {
	return msgNothingToCancel, nil
}

func (e *Engine) handleHelp(_ context.Context, _ *turn) (string, error) {
	return FormatHelp(), nil
}

func (e *Engine) handleOpenVsClosed(_ context.Context, _ *turn) (string, error) {
	cur, ok := e.cache.Current()
	if !ok {
		return msgNotLoaded, nil
	}
	return FormatOpenVsClosed(cur), nil
}

func (e *Engine) handleCurrentSprint(_ context.Context, _ *turn) (string, error) {
	cur, ok := e.cache.Current()
	if !ok {
		return msgNotLoaded, nil
	}
	return FormatCurrentSprint(cur), nil
}

func (e *Engine) handleAllSprints(_ context.Context, _ *turn) (string, error) {
	return FormatOverview(e.cache.Snapshot()), nil
}

// sprintLabel renders the text captured after "sprint" for replies.
func sprintLabel(ref string) string {
	return "Sprint " + strings.TrimSpace(ref)
}

// resolveSprint maps a label to an iteration path, or returns the user-facing reply when it cannot.
func (e *Engine) resolveSprint(label string) (string, string, bool) {
	if !e.cache.Populated() {
		return "", msgNotLoaded, false
	}
	path, ok := e.cache.ResolveLabel(label)
	if !ok {
		return "", sprintNotFound(label), false
	}
	return path, "", true
}

func (e *Engine) handleIssuesAndTasksInSprint(ctx context.Context, t *turn) (string, error) {
	label := sprintLabel(t.match[1])
	path, reply, ok := e.resolveSprint(t.match[1])
	if !ok {
		return reply, nil
	}
	issues, err := e.backend.ListInIteration(ctx, path, domain.TypeIssue)
	if err != nil {
		return "", err
	}
	tasks, err := e.backend.ListInIteration(ctx, path, domain.TypeTask)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🧾 Issues in %s:\n%s\n\n🧾 Tasks in %s:\n%s",
		label, orDefault(FormatItemLines(issues, 0), "(none)"),
		label, orDefault(FormatItemLines(tasks, 0), "(none)")), nil
}

func (e *Engine) handleTasksInSprint(ctx context.Context, t *turn) (string, error) {
	return e.tasksInSprint(ctx, t.match[1])
}

func (e *Engine) tasksInSprint(ctx context.Context, ref string) (string, error) {
	label := sprintLabel(ref)
	path, reply, ok := e.resolveSprint(ref)
	if !ok {
		return reply, nil
	}
	tasks, err := e.backend.ListInIteration(ctx, path, domain.TypeTask)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return fmt.Sprintf("No Tasks found in %s.", label), nil
	}
	return fmt.Sprintf("🧾 Tasks in %s:\n%s", label, FormatItemLines(tasks, 0)), nil
}

func itemType(kind string) string {
	kind = strings.ToLower(kind)
	switch {
	case strings.HasPrefix(kind, "issue"):
		return domain.TypeIssue
	case strings.HasPrefix(kind, "task"):
		return domain.TypeTask
	}
	return ""
}

func pluralType(itemType string) string {
	if itemType == "" {
		return "Work Items"
	}
	return itemType + "s"
}

func (e *Engine) handleItemsInSprint(ctx context.Context, t *turn) (string, error) {
	typ := itemType(t.match[1])
	ref := strings.TrimSpace(t.match[2])
	label := sprintLabel(ref)
	path, reply, ok := e.resolveSprint(ref)
	if !ok {
		return reply, nil
	}

	var items []domain.WorkItemSummary
	if bucket, cached := e.cachedBucket(path); cached {
		for _, it := range bucket.Items {
			if typ == "" || it.Type == typ {
				items = append(items, it)
			}
		}
	} else {
		var err error
		if items, err = e.backend.ListInIteration(ctx, path, typ); err != nil {
			return "", err
		}
	}

	if len(items) == 0 {
		return fmt.Sprintf("No %s found in %s.", strings.ToLower(pluralType(typ)), label), nil
	}
	return fmt.Sprintf("🧾 %s in %s:\n%s", pluralType(typ), label, FormatItemLines(items, maxListed)), nil
}

func (e *Engine) cachedBucket(path string) (domain.SprintBucket, bool) {
	for _, b := range e.cache.Buckets() {
		if b.Path == path && b.SprintID != sprints.FallbackSprintID {
			return b, true
		}
	}
	return domain.SprintBucket{}, false
}

func (e *Engine) handleListLatest(ctx context.Context, t *turn) (string, error) {
	typ := itemType(t.match[1])
	items, err := e.backend.ListLatest(ctx, typ)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return fmt.Sprintf("No %s found.", strings.ToLower(pluralType(typ))), nil
	}
	return fmt.Sprintf("🧾 Latest %s:\n%s", pluralType(typ), FormatItemLines(items, maxLatest)), nil
}

func (e *Engine) handleUnassignedToDo(ctx context.Context, t *turn) (string, error) {
	typ := itemType(t.match[1])
	ref := strings.TrimSpace(t.match[2])

	var path, label string
	if ref != "" {
		label = sprintLabel(ref)
		var reply string
		var ok bool
		if path, reply, ok = e.resolveSprint(ref); !ok {
			return reply, nil
		}
	}

	items, err := e.backend.ListUnassignedToDo(ctx, typ, path)
	if err != nil {
		return "", err
	}
	what := "items"
	if typ != "" {
		what = strings.ToLower(pluralType(typ))
	}
	if len(items) == 0 {
		if label != "" {
			return fmt.Sprintf("There are no unassigned %s in To Do for %s.", what, label), nil
		}
		return fmt.Sprintf("There are no unassigned %s in To Do.", what), nil
	}

	heading := "Unassigned in To Do"
	if label != "" {
		heading = fmt.Sprintf("Unassigned in To Do (%s)", label)
	}
	lines := []string{heading + ":"}
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("#%d: %s (%s)", it.ID, it.Title, it.Type))
	}
	return strings.Join(lines, "\n"), nil
}

func (e *Engine) handleMoveToSprint(ctx context.Context, t *turn) (string, error) {
	id, err := strconv.Atoi(t.match[1])
	if err != nil {
		return "", fmt.Errorf("invalid work item id %q", t.match[1])
	}
	ref := strings.TrimSpace(t.match[2])
	label := sprintLabel(ref)
	path, reply, ok := e.resolveSprint(ref)
	if !ok {
		return reply, nil
	}
	if err := e.backend.UpdateIteration(ctx, id, path); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Moved #%d to %s (Iteration Path applied).", id, label), nil
}

func (e *Engine) handleMoveToState(ctx context.Context, t *turn) (string, error) {
	id, err := strconv.Atoi(t.match[1])
	if err != nil {
		return "", fmt.Errorf("invalid work item id %q", t.match[1])
	}
	raw := strings.TrimSpace(t.match[2])
	state, ok := domain.CanonicalState(raw)
	if !ok {
		return fmt.Sprintf("⚠️ Unknown state \"%s\". Try: %s.", raw, strings.Join(domain.AllowedStates, ", ")), nil
	}
	if err := e.backend.UpdateState(ctx, id, state); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Moved #%d to %s.", id, state), nil
}

func (e *Engine) handleGetItem(ctx context.Context, t *turn) (string, error) {
	id, err := strconv.Atoi(t.group())
	if err != nil {
		return "", fmt.Errorf("invalid work item id %q", t.group())
	}
	return e.itemCard(ctx, id)
}

func (e *Engine) itemCard(ctx context.Context, id int) (string, error) {
	wi, err := e.backend.GetWorkItem(ctx, id)
	if errors.Is(err, boards.ErrNotFound) {
		return fmt.Sprintf("⚠️ Work item #%d not found.", id), nil
	}
	if err != nil {
		return "", err
	}
	return FormatCardWithLink(wi), nil
}

var numericTerm = regexp.MustCompile(`^#?(\d+)$`)

func (e *Engine) handleSearch(ctx context.Context, t *turn) (string, error) {
	term := strings.Trim(t.group(), `"'“”`)
	if term == "" {
		return "Please provide a search term. Example: 'search login'", nil
	}
	if m := numericTerm.FindStringSubmatch(term); m != nil {
		id, _ := strconv.Atoi(m[1])
		return e.itemCard(ctx, id)
	}

	if hits := e.cache.Search(term); len(hits) > 0 {
		return FormatSearchHits(term, hits), nil
	}
	found, err := e.backend.SearchByKeyword(ctx, term)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return FormatNoSearchResults(term), nil
	}
	return FormatProjectSearch(term, found), nil
}

func (e *Engine) handleCreateInSprint(ctx context.Context, t *turn) (string, error) {
	typ := itemType(t.match[1])
	ref := strings.TrimSpace(t.match[2])
	label := sprintLabel(ref)
	title := strings.TrimSpace(t.match[3])
	path, reply, ok := e.resolveSprint(ref)
	if !ok {
		return reply, nil
	}

	var created *domain.WorkItem
	var err error
	if typ == domain.TypeIssue {
		created, err = e.backend.CreateIssue(ctx, boards.NewIssue{Title: title, IterationPath: path})
	} else {
		created, err = e.backend.CreateTask(ctx, boards.NewTask{Title: title, IterationPath: path})
	}
	if err != nil {
		return "", err
	}
	e.logger.Info("Work item created", "id", created.ID, "type", typ, "sprint", label)
	return fmt.Sprintf("✅ Created %s #%d in %s", typ, created.ID, label), nil
}

func (e *Engine) handleQuickTask(ctx context.Context, t *turn) (string, error) {
	title := strings.TrimSpace(t.match[1])
	created, err := e.backend.CreateTask(ctx, boards.NewTask{Title: title})
	if err != nil {
		return "", err
	}
	e.logger.Info("Work item created", "id", created.ID, "type", domain.TypeTask)
	return withLink(fmt.Sprintf("✅ Created Task #%d: %s", created.ID, title), created), nil
}

func withLink(s string, wi *domain.WorkItem) string {
	if wi != nil && wi.HTMLURL != "" {
		return s + "\nOpen in Azure Boards: " + wi.HTMLURL
	}
	return s
}
