// Package workitems resolves free-text work item references ("#42", a title,
// part of a title) to concrete work item ids.
package workitems

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/siddhartha-04/itcprj/internal/domain"
)

// maxShortlist bounds the "Did you mean" candidates.
const maxShortlist = 3

var idRef = regexp.MustCompile(`^#?(\d+)\b`)

// Buckets supplies cached sprint buckets, current sprint first.
type Buckets interface {
	Buckets() []domain.SprintBucket
}

// Backend is the subset of the Boards backend the resolver needs.
type Backend interface {
	SearchByKeyword(ctx context.Context, term string) ([]domain.WorkItemSummary, error)
	GetWorkItem(ctx context.Context, id int) (*domain.WorkItem, error)
}

// Resolution is the outcome of resolving a reference. ID is 0 when nothing
// was chosen; Shortlist may still offer candidates.
type Resolution struct {
	ID        int
	Shortlist []domain.Candidate
}

// Found reports whether an id was resolved.
func (r Resolution) Found() bool { return r.ID > 0 }

// Resolver resolves references against the sprint cache first, then the backend.
type Resolver struct {
	cache   Buckets
	backend Backend
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cache Buckets, backend Backend, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cache: cache, backend: backend, logger: logger}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Resolve maps ref to a work item id. It never fails; backend errors count as no candidates.
func (r *Resolver) Resolve(ctx context.Context, ref string) Resolution {
	ref = strings.TrimSpace(ref)
	if m := idRef.FindStringSubmatch(ref); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil && id > 0 {
			return Resolution{ID: id}
		}
	}

	needle := normalize(ref)
	if needle == "" {
		return Resolution{}
	}

	if res, ok := r.fromCache(needle); ok {
		return res
	}
	return r.fromBackend(ctx, ref, needle)
}

func (r *Resolver) fromCache(needle string) (Resolution, bool) {
	var items []domain.WorkItemSummary
	for _, b := range r.cache.Buckets() {
		items = append(items, b.Items...)
	}

	for _, it := range items {
		if normalize(it.Title) == needle {
			return Resolution{ID: it.ID}, true
		}
	}
	for _, it := range items {
		if strings.HasPrefix(normalize(it.Title), needle) {
			return Resolution{ID: it.ID}, true
		}
	}

	var hits []domain.Candidate
	seen := make(map[int]bool)
	for _, it := range items {
		if seen[it.ID] || !strings.Contains(normalize(it.Title), needle) {
			continue
		}
		seen[it.ID] = true
		hits = append(hits, domain.Candidate{ID: it.ID, Title: it.Title})
	}
	switch len(hits) {
	case 0:
		return Resolution{}, false
	case 1:
		return Resolution{ID: hits[0].ID}, true
	default:
		return Resolution{Shortlist: hits[:min(len(hits), maxShortlist)]}, true
	}
}

func (r *Resolver) fromBackend(ctx context.Context, ref, needle string) Resolution {
	results, err := r.backend.SearchByKeyword(ctx, ref)
	if err != nil {
		r.logger.Warn("Work item keyword search failed", "ref", ref, "error", err)
		return Resolution{}
	}
	if len(results) == 0 {
		return Resolution{}
	}

	shortlist := make([]domain.Candidate, 0, maxShortlist)
	for _, it := range results[:min(len(results), maxShortlist)] {
		shortlist = append(shortlist, domain.Candidate{ID: it.ID, Title: it.Title})
	}

	pick := results[0]
	for _, match := range []func(string) bool{
		func(t string) bool { return t == needle },
		func(t string) bool { return strings.HasPrefix(t, needle) },
		func(t string) bool { return strings.Contains(t, needle) },
	} {
		if it, ok := firstMatch(results, match); ok {
			pick = it
			break
		}
	}
	return Resolution{ID: pick.ID, Shortlist: shortlist}
}

func firstMatch(items []domain.WorkItemSummary, match func(string) bool) (domain.WorkItemSummary, bool) {
	for _, it := range items {
		if match(normalize(it.Title)) {
			return it, true
		}
	}
	return domain.WorkItemSummary{}, false
}

// Fetch resolves ref and loads the full work item. A nil item with a nil
// error means the reference did not resolve; res carries any shortlist.
func (r *Resolver) Fetch(ctx context.Context, ref string) (*domain.WorkItem, Resolution, error) {
	res := r.Resolve(ctx, ref)
	if !res.Found() {
		return nil, res, nil
	}
	wi, err := r.backend.GetWorkItem(ctx, res.ID)
	if err != nil {
		return nil, res, fmt.Errorf("load work item %d: %w", res.ID, err)
	}
	return wi, res, nil
}
