package sprints

import (
	"strings"

	"github.com/siddhartha-04/itcprj/internal/domain"
)

// SearchHit is a cached item matching a search term, tagged with its sprint.
type SearchHit struct {
	Item   domain.WorkItemSummary `json:"item"`
	Sprint string                 `json:"sprint"`
}

// Search does a case-insensitive substring match over title, description and
// type of every cached item, in bucket order.
func (c *Cache) Search(term string) []SearchHit {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return nil
	}
	var hits []SearchHit
	for _, b := range c.Buckets() {
		for _, it := range b.Items {
			haystack := strings.ToLower(it.Title + " " + it.Description + " " + it.Type)
			if strings.Contains(haystack, needle) {
				hits = append(hits, SearchHit{Item: it, Sprint: b.SprintName})
			}
		}
	}
	return hits
}
