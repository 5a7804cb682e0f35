package chat

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/siddhartha-04/itcprj/internal/boards"
	"github.com/siddhartha-04/itcprj/internal/domain"
)

var (
	leadingNoise  = regexp.MustCompile("^[\\s\"'`“”‘’•\\-–—]+")
	trailingPunct = regexp.MustCompile(`[.!?]+$`)
)

// normalize trims the message, strips leading quotes/bullets/dashes and trailing sentence punctuation.
func normalize(text string) string {
	s := strings.TrimSpace(text)
	s = leadingNoise.ReplaceAllString(s, "")
	s = trailingPunct.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// turn is one user message being handled.
type turn struct {
	session *domain.ConversationSession
	raw     string
	text    string
	match   []string
}

// group returns the first non-empty capture group.
func (t *turn) group() string {
	for _, g := range t.match[1:] {
		if g != "" {
			return strings.TrimSpace(g)
		}
	}
	return ""
}

type handlerFunc func(e *Engine, ctx context.Context, t *turn) (string, error)

type rule struct {
	name      string
	patterns  []*regexp.Regexp
	errPrefix string
	handle    handlerFunc
}

func (r rule) match(text string) []string {
	for _, p := range r.patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m
		}
	}
	return nil
}

func re(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

// rules is evaluated top to bottom; the first matching rule handles the message.
// Each comment states which later rules the entry must shadow.
var rules = []rule{
	// Only meaningful inside a guided flow; outside one it is a no-op reply.
	{name: "cancel", patterns: []*regexp.Regexp{re(`^(cancel|stop|abort|nevermind|never mind)$`)}, handle: (*Engine).handleCancel},
	{name: "help", patterns: []*regexp.Regexp{re(`^(hi|hello|hey|help)$`)}, handle: (*Engine).handleHelp},
	{name: "open_vs_closed", patterns: []*regexp.Regexp{re(`open\s+vs\s+closed`)}, handle: (*Engine).handleOpenVsClosed},
	// Before tasks_in_sprint, items_in_sprint and list_latest, which all match part of it.
	{
		name:      "issues_and_tasks_in_sprint",
		patterns:  []*regexp.Regexp{re(`^(?:show|list|lists)\s+(?:the\s+)?(?:issues?\s+and\s+tasks?|tasks?\s+and\s+issues?)\s+(?:in|of)\s+sprint\s+(\d+)$`)},
		errPrefix: "Unable to list issues and tasks",
		handle:    (*Engine).handleIssuesAndTasksInSprint,
	},
	// Id form first so "describe #28" never reaches the title resolver as "#28".
	{
		name: "describe",
		patterns: []*regexp.Regexp{
			re(`^(?:what\s+is\s+#?(\d+)\s+about|describe\s+#?(\d+)|explain\s+#?(\d+)|tell\s+me\s+about\s+#?(\d+)|what\s+is\s+the\s+description\s+of\s+#?(\d+))\b`),
			re(`^(?:what\s+is\s+(.+?)\s+about|describe\s+(.+)|explain\s+(.+)|tell\s+me\s+about\s+(.+)|what\s+does\s+(.+)\s+do|what\s+is\s+the\s+description\s+of\s+(.+))$`),
		},
		errPrefix: "Unable to fetch description",
		handle:    (*Engine).handleDescribe,
	},
	// Before child_tasks ("list the tasks of sprint 2" is not a parent title) and items_in_sprint.
	{
		name:      "tasks_in_sprint",
		patterns:  []*regexp.Regexp{re(`^list\s+(?:the\s+)?tasks\s+(?:in|of)\s+sprint\s+(\d+)$`)},
		errPrefix: "Unable to list tasks",
		handle:    (*Engine).handleTasksInSprint,
	},
	// Before items_in_sprint and list_latest, which match "list tasks of/for ...".
	{
		name:      "child_tasks",
		patterns:  []*regexp.Regexp{re(`^(?:what\s+is\s+the\s+child\s+task\s+of|(?:list|show)\s+(?:the\s+)?tasks?\s+(?:of|for))\s+(.+)$`)},
		errPrefix: "Could not list child tasks",
		handle:    (*Engine).handleChildTasks,
	},
	{
		name:      "linked_bugs",
		patterns:  []*regexp.Regexp{re(`^which\s+bugs?\s+(?:are\s+linked\s+to|link(?:ed)?\s+with)\s+(.+)$`)},
		errPrefix: "Unable to fetch linked bugs",
		handle:    (*Engine).handleLinkedBugs,
	},
	{
		name:      "issues_without_tasks",
		patterns:  []*regexp.Regexp{re(`^list\s+all\s+issues?\s+that\s+don'?t\s+have\s+any\s+child\s+tasks?(?:\s+in\s+sprint\s+(.+))?$`)},
		errPrefix: "Unable to check",
		handle:    (*Engine).handleIssuesWithoutTasks,
	},
	{
		name:      "unassigned_todo",
		patterns:  []*regexp.Regexp{re(`^which\s+(items|issues|tasks|work\s*items)\s+are\s+unassigned\s+in\s+to\s*-?\s*do(?:\s+in\s+sprint\s+(.+?))?$`)},
		errPrefix: "Unable to check unassigned",
		handle:    (*Engine).handleUnassignedToDo,
	},
	// Before the guided and quick creation rules, which share the "create issue|task" prefix.
	{
		name:      "create_in_sprint",
		patterns:  []*regexp.Regexp{re(`^create\s+(issue|task)\s+in\s+sprint\s+(.+?):\s*(.+)$`)},
		errPrefix: "Failed to create item",
		handle:    (*Engine).handleCreateInSprint,
	},
	{name: "guided_issue_start", patterns: []*regexp.Regexp{re(`^(?:create|new|add)\s+(?:user\s+story|issue)$`)}, handle: (*Engine).startIssueFlow},
	{name: "guided_task_start", patterns: []*regexp.Regexp{re(`^create\s+task$`)}, handle: (*Engine).startTaskFlow},
	{
		name:      "quick_task",
		patterns:  []*regexp.Regexp{re(`^create\s+task\s+["“](.+?)["”]$`)},
		errPrefix: "Failed to create task",
		handle:    (*Engine).handleQuickTask,
	},
	// Before list_latest, which matches "list issues in sprint 2" unanchored.
	{
		name:      "items_in_sprint",
		patterns:  []*regexp.Regexp{re(`^(?:list|show|get)\s+(?:the\s+)?(items?|issues?|tasks?|work\s*items?)\s+(?:in|from|of)\s+sprint\s+(.+)$`)},
		errPrefix: "Unable to list items",
		handle:    (*Engine).handleItemsInSprint,
	},
	{
		name:      "list_latest",
		patterns:  []*regexp.Regexp{re(`\blist\s+(issues|tasks|work\s+items)\b`)},
		errPrefix: "Unable to list latest",
		handle:    (*Engine).handleListLatest,
	},
	// Before move_to_state, whose target would otherwise swallow "sprint 2".
	{
		name:      "move_to_sprint",
		patterns:  []*regexp.Regexp{re(`^move\s+#?(\d+)\s+to\s+sprint\s+(.+)$`)},
		errPrefix: "Failed to move item",
		handle:    (*Engine).handleMoveToSprint,
	},
	{
		name:      "move_to_state",
		patterns:  []*regexp.Regexp{re(`^move\s+#?(\d+)\s+to\s+(.+)$`)},
		errPrefix: "Failed to update state",
		handle:    (*Engine).handleMoveToState,
	},
	{
		name:      "get_item",
		patterns:  []*regexp.Regexp{re(`^(?:get|show)\s+#?(\d+)$`), re(`^#(\d+)$`)},
		errPrefix: "Unable to fetch item",
		handle:    (*Engine).handleGetItem,
	},
	// Unanchored summaries come late so specific "show ..." commands win.
	{name: "current_sprint", patterns: []*regexp.Regexp{re(`current sprint|sprint stories|show sprint`)}, handle: (*Engine).handleCurrentSprint},
	{name: "all_sprints", patterns: []*regexp.Regexp{re(`all sprints|sprint summary|sprint overview`)}, handle: (*Engine).handleAllSprints},
	{
		name:      "search",
		patterns:  []*regexp.Regexp{re(`^(?:search|find)\s+(?:work\s*items?\s+)?(?:for\s+)?(.+)$`)},
		errPrefix: "Search failed",
		handle:    (*Engine).handleSearch,
	},
}

// classify returns the first rule matching text.
func classify(text string) (rule, []string, bool) {
	for _, r := range rules {
		if m := r.match(text); m != nil {
			return r, m, true
		}
	}
	return rule{}, nil, false
}

// errorReply renders a handler error for the user.
func errorReply(prefix string, err error) string {
	msg := err.Error()
	switch {
	case boards.IsTransient(err):
		msg = msgUnreachable
	case errors.Is(err, boards.ErrNotFound):
		msg = boards.ErrNotFound.Error()
	}
	if prefix == "" {
		return "⚠️ " + msg
	}
	return "⚠️ " + prefix + ": " + msg
}
