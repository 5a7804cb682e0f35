package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/siddhartha-04/itcprj/internal/boards"
	"github.com/siddhartha-04/itcprj/internal/domain"
)

// flowStep is one question of a guided creation flow.
type flowStep struct {
	key      string
	prompt   string
	next     domain.Flow
	skipable bool
}

// flowSteps maps each awaiting state to the value it collects and the state that follows.
// A step whose next state is FlowNone completes the flow.
var flowSteps = map[domain.Flow]flowStep{
	domain.FlowIssueAwaitingTitle:       {key: domain.TempTitle, prompt: promptIssueTitle, next: domain.FlowIssueAwaitingDescription},
	domain.FlowIssueAwaitingDescription: {key: domain.TempDescription, prompt: promptIssueDescription, next: domain.FlowIssueAwaitingAcceptance, skipable: true},
	domain.FlowIssueAwaitingAcceptance:  {key: domain.TempAcceptanceCriteria, prompt: promptIssueAcceptance, next: domain.FlowIssueAwaitingPoints, skipable: true},
	domain.FlowIssueAwaitingPoints:      {key: domain.TempStoryPoints, prompt: promptIssuePoints, next: domain.FlowIssueAwaitingAssignee, skipable: true},
	domain.FlowIssueAwaitingAssignee:    {key: domain.TempAssignedTo, prompt: promptIssueAssignee, next: domain.FlowNone, skipable: true},

	domain.FlowTaskAwaitingTitle:       {key: domain.TempTitle, prompt: promptTaskTitle, next: domain.FlowTaskAwaitingDescription},
	domain.FlowTaskAwaitingDescription: {key: domain.TempDescription, prompt: promptTaskDescription, next: domain.FlowTaskAwaitingAssignee, skipable: true},
	domain.FlowTaskAwaitingAssignee:    {key: domain.TempAssignedTo, prompt: promptTaskAssignee, next: domain.FlowTaskAwaitingRemaining, skipable: true},
	domain.FlowTaskAwaitingRemaining:   {key: domain.TempRemainingWork, prompt: promptTaskRemaining, next: domain.FlowNone, skipable: true},
}

func isIssueFlow(f domain.Flow) bool {
	return strings.HasPrefix(string(f), "issue_")
}

func flowErrPrefix(sess *domain.ConversationSession) string {
	if isIssueFlow(sess.Flow) {
		return "Failed to create item"
	}
	return "Failed to create task"
}

func (e *Engine) startIssueFlow(_ context.Context, t *turn) (string, error) {
	t.session.Reset()
	t.session.Flow = domain.FlowIssueAwaitingTitle
	return promptIssueTitle, nil
}

func (e *Engine) startTaskFlow(_ context.Context, t *turn) (string, error) {
	t.session.Reset()
	t.session.Flow = domain.FlowTaskAwaitingTitle
	return promptTaskTitle, nil
}

// continueFlow stores the answer to the current question and asks the next one,
// creating the work item once the last answer arrives.
func (e *Engine) continueFlow(ctx context.Context, t *turn) (string, error) {
	sess := t.session
	step, ok := flowSteps[sess.Flow]
	if !ok {
		e.logger.Warn("Unknown flow state, resetting", "session_id", sess.ID, "flow", string(sess.Flow))
		sess.Reset()
		return msgGenericFailure, nil
	}

	value := strings.TrimSpace(t.raw)
	if value == "" {
		return step.prompt, nil
	}
	if step.skipable && strings.EqualFold(t.text, "skip") {
		value = ""
	}

	issue := isIssueFlow(sess.Flow)
	sess.Advance(step.key, value, step.next)
	if step.next != domain.FlowNone {
		return flowSteps[step.next].prompt, nil
	}

	defer sess.Reset()
	if issue {
		return e.finishIssue(ctx, sess)
	}
	return e.finishTask(ctx, sess)
}

func (e *Engine) finishIssue(ctx context.Context, sess *domain.ConversationSession) (string, error) {
	in := boards.NewIssue{
		Title:              sess.Temp[domain.TempTitle],
		Description:        sess.Temp[domain.TempDescription],
		AcceptanceCriteria: sess.Temp[domain.TempAcceptanceCriteria],
		StoryPoints:        parseNumber(sess.Temp[domain.TempStoryPoints]),
		AssignedTo:         sess.Temp[domain.TempAssignedTo],
	}
	created, err := e.backend.CreateIssue(ctx, in)
	if err != nil {
		return "", err
	}
	e.logger.Info("Work item created", "session_id", sess.ID, "id", created.ID, "type", domain.TypeIssue)
	return withLink(fmt.Sprintf("✅ Backlog item created\n#%d: %s", created.ID, in.Title), created), nil
}

func (e *Engine) finishTask(ctx context.Context, sess *domain.ConversationSession) (string, error) {
	in := boards.NewTask{
		Title:         sess.Temp[domain.TempTitle],
		Description:   sess.Temp[domain.TempDescription],
		AssignedTo:    sess.Temp[domain.TempAssignedTo],
		RemainingWork: parseNumber(sess.Temp[domain.TempRemainingWork]),
	}
	created, err := e.backend.CreateTask(ctx, in)
	if err != nil {
		return "", err
	}
	e.logger.Info("Work item created", "session_id", sess.ID, "id", created.ID, "type", domain.TypeTask)
	return fmt.Sprintf("✅ Created Task #%d", created.ID), nil
}

// parseNumber reads an estimate; anything unparsable counts as zero.
func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
