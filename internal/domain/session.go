package domain

import (
	"time"
)

// Flow names a step of a guided creation flow.
type Flow string

// Guided flow states. FlowNone means no flow is active.
const (
	FlowNone                     Flow = ""
	FlowIssueAwaitingTitle       Flow = "issue_awaiting_title"
	FlowIssueAwaitingDescription Flow = "issue_awaiting_description"
	FlowIssueAwaitingAcceptance  Flow = "issue_awaiting_acceptance"
	FlowIssueAwaitingPoints      Flow = "issue_awaiting_points"
	FlowIssueAwaitingAssignee    Flow = "issue_awaiting_assignee"
	FlowTaskAwaitingTitle        Flow = "task_awaiting_title"
	FlowTaskAwaitingDescription  Flow = "task_awaiting_description"
	FlowTaskAwaitingAssignee     Flow = "task_awaiting_assignee"
	FlowTaskAwaitingRemaining    Flow = "task_awaiting_remaining"
)

// Keys used in ConversationSession.Temp.
const (
	TempTitle              = "title"
	TempDescription        = "description"
	TempAcceptanceCriteria = "acceptanceCriteria"
	TempStoryPoints        = "storyPoints"
	TempAssignedTo         = "assignedTo"
	TempRemainingWork      = "remainingWork"
)

// ConversationSession holds per-connection conversation state.
type ConversationSession struct {
	ID        string
	Flow      Flow
	Temp      map[string]string
	CreatedAt time.Time
}

// NewConversationSession returns an idle session.
func NewConversationSession(id string) *ConversationSession {
	return &ConversationSession{
		ID:        id,
		Temp:      make(map[string]string),
		CreatedAt: time.Now(),
	}
}

// InFlow reports whether a guided flow is active.
func (s *ConversationSession) InFlow() bool {
	return s.Flow != FlowNone
}

// Advance stores a collected value and moves to the next step.
func (s *ConversationSession) Advance(key, value string, next Flow) {
	if s.Temp == nil {
		s.Temp = make(map[string]string)
	}
	s.Temp[key] = value
	s.Flow = next
}

// Reset clears the flow and everything collected so far.
func (s *ConversationSession) Reset() {
	s.Flow = FlowNone
	s.Temp = make(map[string]string)
}

// Clone returns a deep copy so stored sessions are never shared.
func (s *ConversationSession) Clone() *ConversationSession {
	c := *s
	c.Temp = make(map[string]string, len(s.Temp))
	for k, v := range s.Temp {
		c.Temp[k] = v
	}
	return &c
}
