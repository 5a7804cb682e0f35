package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/siddhartha-04/itcprj/internal/domain"
	"github.com/siddhartha-04/itcprj/internal/sprints"
)

const (
	maxListed        = 50
	maxLatest        = 20
	maxSearchResults = 10
)

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return strings.Join([]string{
		"👋 Hi, I'm your Azure Boards Assistant!",
		"",
		"📊 Boards:",
		"• current sprint, all sprints, open vs closed",
		"• list items in sprint 2, list tasks in sprint 2",
		"• show issues and tasks in sprint 2",
		"• search login",
		"",
		"🔍 Items:",
		"• get 28 or #28, describe #28",
		"• list tasks of #28, which bugs are linked to #28",
		"• list all issues that don't have any child tasks in sprint 2",
		"• which items are unassigned in to do",
		"",
		"✏️ Create and move:",
		"• create issue, create task (guided; type cancel to stop)",
		"• create task \"Title\"",
		"• create issue in sprint 2: Title",
		"• move 28 to Doing, move 28 to sprint 3",
		"",
		"💡 Anything else longer than a few words goes to the AI assistant.",
	}, "\n")
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatCounts renders a bucket's counts line.
func FormatCounts(st domain.Stats) string {
	return fmt.Sprintf("Items: %d | To Do: %d | Doing: %d | Done: %d | Story Points: %s | Remaining Work: %s",
		st.Total, st.ToDo, st.Doing, st.Done, formatNumber(st.StoryPoints), formatNumber(st.RemainingWork))
}

// FormatOpenVsClosed summarises open and closed items of a bucket.
func FormatOpenVsClosed(b domain.SprintBucket) string {
	st := b.Stats()
	return fmt.Sprintf("Open items: %d (To Do: %d + Doing: %d)\nClosed items: %d", st.Open(), st.ToDo, st.Doing, st.Done)
}

// FormatCurrentSprint renders the current sprint with one line per item.
func FormatCurrentSprint(b domain.SprintBucket) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Current Sprint: %s\n%s\n", b.SprintName, FormatCounts(b.Stats()))
	for _, it := range b.Items {
		fmt.Fprintf(&sb, "\n#%d: %s [%s] (%s) Points: %s; Remaining: %s; Assigned: %s",
			it.ID, it.Title, it.State, it.Type, formatNumber(it.StoryPoints), formatNumber(it.RemainingWork), it.AssignedTo)
	}
	return sb.String()
}

// FormatOverview renders per-sprint counts for every cached bucket.
func FormatOverview(snap *domain.Snapshot) string {
	if snap == nil || len(snap.Buckets) == 0 {
		return msgNotLoaded
	}
	plural := "s"
	if len(snap.Buckets) == 1 {
		plural = ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Sprint Overview (Last %d Sprint%s)\n", len(snap.Buckets), plural)
	for i, b := range snap.Buckets {
		fmt.Fprintf(&sb, "\n%d. %s\n  • %s\n", i+1, b.SprintName, FormatCounts(b.Stats()))
	}
	fmt.Fprintf(&sb, "\nLast updated: %s", snap.LastUpdated.Format(time.DateTime))
	return sb.String()
}

// FormatItemLines renders "#id: title [state]" lines.
func FormatItemLines(items []domain.WorkItemSummary, limit int) string {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("#%d: %s [%s]", it.ID, it.Title, it.State))
	}
	return strings.Join(lines, "\n")
}

// FormatCard renders a work item's header: id, title, type, state and assignee.
func FormatCard(wi *domain.WorkItem) string {
	title := wi.Title()
	if title == "" {
		title = "(Untitled)"
	}
	card := fmt.Sprintf("#%d: %s\nType: %s\nState: %s\nAssigned: %s",
		wi.ID, title, orDefault(wi.Type(), "Work Item"), orDefault(wi.State(), "Unknown"), wi.AssignedTo())
	if path := wi.StringField(domain.FieldIterationPath); path != "" {
		card += "\nIteration: " + path
	}
	return card
}

// FormatCardWithLink adds the web link to FormatCard when the backend returned one.
func FormatCardWithLink(wi *domain.WorkItem) string {
	card := FormatCard(wi)
	if wi.HTMLURL != "" {
		card += "\nOpen in Azure Boards: " + wi.HTMLURL
	}
	return card
}

// FormatShortlist renders disambiguation candidates.
func FormatShortlist(cands []domain.Candidate) string {
	lines := []string{"Did you mean:"}
	for _, c := range cands {
		lines = append(lines, fmt.Sprintf("#%d — %s", c.ID, c.Title))
	}
	return strings.Join(lines, "\n")
}

// FormatSearchHits renders cache search results.
func FormatSearchHits(term string, hits []sprints.SearchHit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Search Results for %q (%d found)\n", term, len(hits))
	for _, h := range hits[:min(len(hits), maxSearchResults)] {
		fmt.Fprintf(&sb, "\n#%d: %s\nType: %s | State: %s | Sprint: %s\n", h.Item.ID, h.Item.Title, h.Item.Type, h.Item.State, h.Sprint)
	}
	if len(hits) > maxSearchResults {
		fmt.Fprintf(&sb, "\nShowing first %d of %d results", maxSearchResults, len(hits))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatProjectSearch renders backend keyword search results.
func FormatProjectSearch(term string, items []domain.WorkItemSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Project Search Results for %q (%d found)\n", term, len(items))
	for _, it := range items[:min(len(items), maxSearchResults)] {
		fmt.Fprintf(&sb, "\n#%d: %s\nType: %s | State: %s | Iteration: %s\n", it.ID, it.Title, it.Type, it.State, orDefault(it.IterationPath, "None"))
	}
	if len(items) > maxSearchResults {
		fmt.Fprintf(&sb, "\nShowing first %d of %d results", maxSearchResults, len(items))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatNoSearchResults is the reply when neither cache nor backend found anything.
func FormatNoSearchResults(term string) string {
	return fmt.Sprintf("🔍 No work items found matching %q", term)
}

func sprintNotFound(label string) string {
	return fmt.Sprintf("⚠️ Sprint \"%s\" not found; check Team Settings → Iterations.", label)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// stripHTML turns a rich-text field into plain text. Script and style bodies are dropped;
// line breaks and closed paragraphs, divs and list items become newlines.
func stripHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	hidden := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return tidyLines(b.String())
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					hidden++
				}
			case atom.Br:
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				if hidden > 0 {
					hidden--
				}
			case atom.P, atom.Div, atom.Li:
				b.WriteByte('\n')
			}
		}
	}
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
