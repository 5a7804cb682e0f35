package sprints

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	labelStripper = strings.NewReplacer("“", "", "”", "", `"`, "", "'", "", "(", "", ")", "")
	sprintNumber  = regexp.MustCompile(`(?:^|[\s\-_])sprint[\s\-_]*([0-9]+)$`)
	bareNumber    = regexp.MustCompile(`^([0-9]+)$`)
)

// NormalizeLabel canonicalises a user-typed sprint label for matching.
func NormalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = labelStripper.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".:;,)]")
	return strings.TrimSpace(s)
}

func labelNumber(norm string) (int, bool) {
	m := sprintNumber.FindStringSubmatch(norm)
	if m == nil {
		m = bareNumber.FindStringSubmatch(norm)
	}
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ResolveLabel maps a loose sprint label ("Sprint 3", "3", "sprint-3.") onto
// the iteration path of a cached bucket.
func (c *Cache) ResolveLabel(label string) (string, bool) {
	buckets := c.Buckets()
	if len(buckets) == 0 {
		return "", false
	}
	norm := NormalizeLabel(label)
	if norm == "" {
		return "", false
	}

	for _, b := range buckets {
		if strings.ToLower(b.SprintName) == norm {
			return b.Path, true
		}
	}

	if n, ok := labelNumber(norm); ok {
		canonical := "sprint " + strconv.Itoa(n)
		for _, b := range buckets {
			if strings.ToLower(b.SprintName) == canonical {
				return b.Path, true
			}
		}
		if n <= len(buckets) {
			b := buckets[n-1]
			c.logger.Warn("sprint label resolved by position",
				"label", label,
				"position", n,
				"sprint", b.SprintName)
			return b.Path, true
		}
	}

	for _, b := range buckets {
		if strings.Contains(strings.ToLower(b.SprintName), norm) {
			return b.Path, true
		}
	}
	return "", false
}
