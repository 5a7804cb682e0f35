package sprints

import (
	"sort"
	"time"

	"github.com/siddhartha-04/itcprj/internal/domain"
)

// OrderIterations returns dated iterations current-first: iterations spanning
// now, then past ones newest first, then future ones soonest first.
// Iterations without both dates are dropped.
func OrderIterations(its []domain.Iteration, now time.Time) []domain.Iteration {
	var current, past, future []domain.Iteration
	for _, it := range its {
		if it.StartDate == nil || it.FinishDate == nil {
			continue
		}
		switch {
		case it.FinishDate.Before(now):
			past = append(past, it)
		case it.StartDate.After(now):
			future = append(future, it)
		default:
			current = append(current, it)
		}
	}

	sort.SliceStable(past, func(i, j int) bool {
		return past[i].StartDate.After(*past[j].StartDate)
	})
	sort.SliceStable(future, func(i, j int) bool {
		return future[i].StartDate.Before(*future[j].StartDate)
	})

	out := make([]domain.Iteration, 0, len(current)+len(past)+len(future))
	out = append(out, current...)
	out = append(out, past...)
	return append(out, future...)
}
