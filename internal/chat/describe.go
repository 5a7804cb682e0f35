package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/siddhartha-04/itcprj/internal/domain"
	"github.com/siddhartha-04/itcprj/internal/workitems"
)

// relationFetchLimit bounds concurrent GetWorkItem calls when checking many issues.
const relationFetchLimit = 4

var sprintRef = re(`^sprint\s+(\d+)$`)

// notFoundReply is the answer for a reference that did not resolve, with candidates when the resolver had any.
func notFoundReply(base string, res workitems.Resolution) string {
	if len(res.Shortlist) == 0 {
		return base
	}
	return base + "\n\n" + FormatShortlist(res.Shortlist)
}

func (e *Engine) handleDescribe(ctx context.Context, t *turn) (string, error) {
	wi, res, err := e.resolver.Fetch(ctx, t.group())
	if err != nil {
		return "", err
	}
	if wi == nil {
		return notFoundReply(msgItemNotFound, res), nil
	}

	header := FormatCard(wi)
	desc := strings.TrimSpace(wi.Description())
	if desc == "" {
		return header + "\n\n(No description provided)", nil
	}

	plain := stripHTML(desc)
	if summary, ok := e.queryLLM(ctx, "Summarize the following in 4-6 concise bullets:\n\n"+plain); ok {
		return header + "\n\n" + summary, nil
	}
	return header + "\n\n" + plain, nil
}

func (e *Engine) handleChildTasks(ctx context.Context, t *turn) (string, error) {
	ref := t.group()
	if m := sprintRef.FindStringSubmatch(ref); m != nil {
		return e.tasksInSprint(ctx, m[1])
	}

	parent, res, err := e.resolver.Fetch(ctx, ref)
	if err != nil {
		return "", err
	}
	if parent == nil {
		return notFoundReply("⚠️ Could not find the parent work item.", res), nil
	}

	none := fmt.Sprintf("No child Tasks found for #%d %s.", parent.ID, parent.Title())
	ids := parent.ChildIDs()
	if len(ids) == 0 {
		return none, nil
	}
	children, err := e.backend.GetWorkItems(ctx, ids)
	if err != nil {
		return "", err
	}
	tasks := filterType(children, domain.TypeTask)
	if len(tasks) == 0 {
		return none, nil
	}
	return fmt.Sprintf("Child Tasks of #%d %s:\n%s", parent.ID, parent.Title(), relationLines(tasks)), nil
}

func (e *Engine) handleLinkedBugs(ctx context.Context, t *turn) (string, error) {
	wi, res, err := e.resolver.Fetch(ctx, t.group())
	if err != nil {
		return "", err
	}
	if wi == nil {
		return notFoundReply(msgItemNotFound, res), nil
	}

	none := fmt.Sprintf("No linked Bugs found for #%d.", wi.ID)
	ids := wi.RelatedIDs()
	if len(ids) == 0 {
		return none, nil
	}
	related, err := e.backend.GetWorkItems(ctx, ids)
	if err != nil {
		return "", err
	}
	bugs := filterType(related, domain.TypeBug)
	if len(bugs) == 0 {
		return none, nil
	}
	return "Linked Bugs:\n" + relationLines(bugs), nil
}

func (e *Engine) handleIssuesWithoutTasks(ctx context.Context, t *turn) (string, error) {
	var path string
	if label := strings.TrimSpace(t.group()); label != "" {
		var reply string
		var ok bool
		if path, reply, ok = e.resolveSprint(label); !ok {
			return reply, nil
		}
	} else {
		cur, ok := e.cache.Current()
		if !ok {
			return msgNotLoaded, nil
		}
		path = cur.Path
	}

	issues, err := e.backend.ListInIteration(ctx, path, domain.TypeIssue)
	if err != nil {
		return "", err
	}
	if len(issues) == 0 {
		return "No Issues found in that sprint.", nil
	}

	childless := make([]bool, len(issues))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(relationFetchLimit)
	for i, issue := range issues {
		g.Go(func() error {
			wi, err := e.backend.GetWorkItem(gctx, issue.ID)
			if err != nil {
				e.logger.Debug("Skipping issue whose relations could not be loaded", "id", issue.ID, "error", err)
				return nil
			}
			if len(wi.ChildIDs()) == 0 {
				mu.Lock()
				childless[i] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var lines []string
	for i, issue := range issues {
		if childless[i] {
			lines = append(lines, fmt.Sprintf("#%d %s", issue.ID, issue.Title))
		}
	}
	if len(lines) == 0 {
		return "All Issues in that sprint have child Tasks.", nil
	}
	return "Issues without child Tasks:\n" + strings.Join(lines, "\n"), nil
}

func filterType(items []domain.WorkItemSummary, typ string) []domain.WorkItemSummary {
	var out []domain.WorkItemSummary
	for _, it := range items {
		if it.Type == typ {
			out = append(out, it)
		}
	}
	return out
}

func relationLines(items []domain.WorkItemSummary) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("#%d %s [%s]", it.ID, it.Title, it.State))
	}
	return strings.Join(lines, "\n")
}
