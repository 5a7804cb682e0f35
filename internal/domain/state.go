package domain

import "strings"

// The fixed three-state process.
const (
	StateToDo  = "To Do"
	StateDoing = "Doing"
	StateDone  = "Done"
)

// AllowedStates lists the states a work item may be moved to, in board order.
var AllowedStates = []string{StateToDo, StateDoing, StateDone}

var stateAliases = map[string]string{
	"todo":        StateToDo,
	"to do":       StateToDo,
	"to-do":       StateToDo,
	"doing":       StateDoing,
	"in progress": StateDoing,
	"done":        StateDone,
	"completed":   StateDone,
	"complete":    StateDone,
}

// CanonicalState maps a user-supplied state name onto a process state.
func CanonicalState(raw string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.NewReplacer(`"`, "", "'", "", "“", "", "”", "").Replace(norm)
	norm = strings.Join(strings.Fields(norm), " ")
	s, ok := stateAliases[norm]
	return s, ok
}
