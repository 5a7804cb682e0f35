package boards

import (
	"fmt"
	"strings"
)

// escapeWIQL doubles single quotes so a value can be embedded in a WIQL string literal.
func escapeWIQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

type wiqlQuery struct {
	conditions []string
	orderBy    string
}

func newWIQL() *wiqlQuery {
	return &wiqlQuery{
		conditions: []string{"[System.TeamProject] = @project"},
		orderBy:    "[System.ChangedDate] DESC",
	}
}

func (q *wiqlQuery) ofType(itemType string) *wiqlQuery {
	if itemType != "" {
		q.conditions = append(q.conditions, fmt.Sprintf("[System.WorkItemType] = '%s'", escapeWIQL(itemType)))
	}
	return q
}

func (q *wiqlQuery) under(iterationPath string) *wiqlQuery {
	if iterationPath != "" {
		q.conditions = append(q.conditions, fmt.Sprintf("[System.IterationPath] UNDER '%s'", escapeWIQL(iterationPath)))
	}
	return q
}

func (q *wiqlQuery) where(cond string) *wiqlQuery {
	q.conditions = append(q.conditions, cond)
	return q
}

func (q *wiqlQuery) order(by string) *wiqlQuery {
	q.orderBy = by
	return q
}

func (q *wiqlQuery) String() string {
	return "SELECT [System.Id] FROM WorkItems WHERE " +
		strings.Join(q.conditions, " AND ") +
		" ORDER BY " + q.orderBy
}

func keywordCondition(term string) string {
	t := escapeWIQL(term)
	return fmt.Sprintf("([System.Title] CONTAINS '%s' OR [System.Description] CONTAINS '%s')", t, t)
}
