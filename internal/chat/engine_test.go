package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddhartha-04/itcprj/internal/boards"
	"github.com/siddhartha-04/itcprj/internal/domain"
	"github.com/siddhartha-04/itcprj/internal/llm"
	"github.com/siddhartha-04/itcprj/internal/sprints"
)

const (
	pathSprint2 = `Storefront\Sprint 2`
	pathSprint3 = `Storefront\Sprint 3`
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu sync.Mutex

	items     map[int]*domain.WorkItem
	byPath    map[string][]domain.WorkItemSummary
	search    []domain.WorkItemSummary
	latestErr error
	panicGet  bool

	createdIssues []boards.NewIssue
	createdTasks  []boards.NewTask
	stateUpdates  []string
	iterUpdates   []string
	calls         int
	nextID        int
}

func newFakeBackend() *fakeBackend {
	fb := &fakeBackend{
		items:  make(map[int]*domain.WorkItem),
		byPath: make(map[string][]domain.WorkItemSummary),
		nextID: 100,
	}
	fb.add(28, domain.TypeIssue, "Login page", domain.StateDoing, "<p>Users &amp; admins sign in</p>",
		domain.Relation{Rel: "System.LinkTypes.Hierarchy-Forward", URL: "https://dev.azure.com/org/_apis/wit/workItems/30"},
		domain.Relation{Rel: "System.LinkTypes.Related", URL: "https://dev.azure.com/org/_apis/wit/workItems/31"},
	)
	fb.add(29, domain.TypeIssue, "Checkout", domain.StateToDo, "")
	fb.add(30, domain.TypeTask, "Write tests", domain.StateToDo, "")
	fb.add(31, domain.TypeBug, "Login button misaligned", domain.StateDoing, "")
	fb.byPath[pathSprint3] = []domain.WorkItemSummary{
		fb.items[28].Summary(), fb.items[29].Summary(), fb.items[30].Summary(),
	}
	return fb
}

func (f *fakeBackend) add(id int, typ, title, state, desc string, rels ...domain.Relation) {
	f.items[id] = &domain.WorkItem{
		ID: id,
		Fields: map[string]any{
			domain.FieldTitle:       title,
			domain.FieldType:        typ,
			domain.FieldState:       state,
			domain.FieldDescription: desc,
		},
		Relations: rels,
		HTMLURL:   fmt.Sprintf("https://dev.azure.com/org/Storefront/_workitems/edit/%d", id),
	}
}

func (f *fakeBackend) hit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) ListTeams(context.Context) ([]boards.Team, error) {
	f.hit()
	return nil, nil
}

func (f *fakeBackend) FetchIterations(context.Context, string) ([]domain.Iteration, error) {
	f.hit()
	return nil, nil
}

func (f *fakeBackend) FetchIterationItems(context.Context, string, string) ([]domain.WorkItemSummary, error) {
	f.hit()
	return nil, nil
}

func (f *fakeBackend) FetchRecentItems(context.Context, int) ([]domain.WorkItemSummary, error) {
	f.hit()
	return nil, nil
}

func (f *fakeBackend) GetWorkItem(_ context.Context, id int) (*domain.WorkItem, error) {
	f.hit()
	if f.panicGet {
		panic("boom")
	}
	wi, ok := f.items[id]
	if !ok {
		return nil, boards.ErrNotFound
	}
	return wi, nil
}

func (f *fakeBackend) GetWorkItems(_ context.Context, ids []int) ([]domain.WorkItemSummary, error) {
	f.hit()
	var out []domain.WorkItemSummary
	for _, id := range ids {
		if wi, ok := f.items[id]; ok {
			out = append(out, wi.Summary())
		}
	}
	return out, nil
}

func (f *fakeBackend) SearchByKeyword(context.Context, string) ([]domain.WorkItemSummary, error) {
	f.hit()
	return f.search, nil
}

func (f *fakeBackend) ListLatest(context.Context, string) ([]domain.WorkItemSummary, error) {
	f.hit()
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return []domain.WorkItemSummary{f.items[29].Summary()}, nil
}

func (f *fakeBackend) ListInIteration(_ context.Context, path, typ string) ([]domain.WorkItemSummary, error) {
	f.hit()
	var out []domain.WorkItemSummary
	for _, it := range f.byPath[path] {
		if typ == "" || it.Type == typ {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeBackend) ListUnassignedToDo(_ context.Context, typ, path string) ([]domain.WorkItemSummary, error) {
	f.hit()
	return nil, nil
}

func (f *fakeBackend) CreateIssue(_ context.Context, in boards.NewIssue) (*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.createdIssues = append(f.createdIssues, in)
	f.nextID++
	return &domain.WorkItem{ID: f.nextID, HTMLURL: fmt.Sprintf("https://example.test/%d", f.nextID)}, nil
}

func (f *fakeBackend) CreateTask(_ context.Context, in boards.NewTask) (*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.createdTasks = append(f.createdTasks, in)
	f.nextID++
	return &domain.WorkItem{ID: f.nextID}, nil
}

func (f *fakeBackend) UpdateState(_ context.Context, id int, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.stateUpdates = append(f.stateUpdates, fmt.Sprintf("%d=%s", id, state))
	return nil
}

func (f *fakeBackend) UpdateIteration(_ context.Context, id int, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.iterUpdates = append(f.iterUpdates, fmt.Sprintf("%d=%s", id, path))
	return nil
}

type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Query(_ context.Context, userText string, _ llm.CompactContext) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, userText)
	return f.reply, f.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	started []string
	ended   []string
	turns   []string
}

func (r *fakeRecorder) StartSession(_ context.Context, id, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, id)
	return nil
}

func (r *fakeRecorder) EndSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, id)
	return nil
}

func (r *fakeRecorder) AppendTurn(_ context.Context, _, direction, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, direction)
	return nil
}

func testSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Buckets: []domain.SprintBucket{
			{
				SprintName: "Sprint 3",
				SprintID:   "s3",
				Path:       pathSprint3,
				Items: []domain.WorkItemSummary{
					{ID: 28, Title: "Login page", Type: domain.TypeIssue, State: domain.StateDoing, AssignedTo: "Dana", StoryPoints: 5},
					{ID: 29, Title: "Checkout", Type: domain.TypeIssue, State: domain.StateToDo, AssignedTo: domain.UnassignedName, StoryPoints: 3},
					{ID: 30, Title: "Write tests", Type: domain.TypeTask, State: domain.StateToDo, AssignedTo: "Sam", RemainingWork: 4},
				},
			},
			{
				SprintName: "Sprint 2",
				SprintID:   "s2",
				Path:       pathSprint2,
				Items: []domain.WorkItemSummary{
					{ID: 10, Title: "Fix login", Type: domain.TypeIssue, State: domain.StateToDo},
					{ID: 11, Title: "Fix logout", Type: domain.TypeIssue, State: domain.StateDoing},
				},
			},
		},
		LastUpdated: testNow,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	engine   *Engine
	backend  *fakeBackend
	cache    *sprints.Cache
	recorder *fakeRecorder
}

func newHarness(t *testing.T, loaded bool, q llm.Querier) *harness {
	t.Helper()
	cache := sprints.New(nil, sprints.Options{Now: func() time.Time { return testNow }, Logger: discardLogger()})
	if loaded {
		cache.Publish(testSnapshot())
	}
	h := &harness{backend: newFakeBackend(), cache: cache, recorder: &fakeRecorder{}}
	h.engine = NewEngine(Deps{
		Cache:    cache,
		Backend:  h.backend,
		LLM:      q,
		Recorder: h.recorder,
		Logger:   discardLogger(),
		Now:      func() time.Time { return testNow },
	})
	return h
}

func (h *harness) say(t *testing.T, text string) string {
	t.Helper()
	return h.engine.HandleMessage(context.Background(), "s-1", text)
}

func TestListItemsInSprintFromCache(t *testing.T) {
	h := newHarness(t, true, nil)

	reply := h.say(t, "list items in sprint 2")

	assert.True(t, strings.HasPrefix(reply, "🧾 Work Items in Sprint 2:\n"), reply)
	assert.Contains(t, reply, "#10: Fix login [To Do]")
	assert.Contains(t, reply, "#11: Fix logout [Doing]")
	assert.Zero(t, h.backend.callCount())
}

func TestListItemsInSprintNotLoaded(t *testing.T) {
	h := newHarness(t, false, nil)
	assert.Equal(t, msgNotLoaded, h.say(t, "list items in sprint 2"))
}

func TestListItemsInUnknownSprint(t *testing.T) {
	h := newHarness(t, true, nil)
	assert.Equal(t, `⚠️ Sprint "9" not found; check Team Settings → Iterations.`, h.say(t, "list items in sprint 9"))
}

func TestMoveToState(t *testing.T) {
	h := newHarness(t, true, nil)

	reply := h.say(t, "move 10 to doing")

	assert.Equal(t, "✅ Moved #10 to Doing.", reply)
	assert.Equal(t, []string{"10=Doing"}, h.backend.stateUpdates)
}

func TestMoveToUnknownStateMakesNoBackendCall(t *testing.T) {
	h := newHarness(t, true, nil)

	reply := h.say(t, "move 10 to bogus-state")

	assert.Equal(t, `⚠️ Unknown state "bogus-state". Try: To Do, Doing, Done.`, reply)
	assert.Zero(t, h.backend.callCount())
}

func TestMoveToSprint(t *testing.T) {
	h := newHarness(t, true, nil)

	reply := h.say(t, "move #29 to sprint 2")

	assert.Equal(t, "✅ Moved #29 to Sprint 2 (Iteration Path applied).", reply)
	assert.Equal(t, []string{"29=" + pathSprint2}, h.backend.iterUpdates)
}

func TestShortUnmatchedInputGetsNudge(t *testing.T) {
	q := &fakeLLM{reply: "unused"}
	h := newHarness(t, true, q)

	assert.Equal(t, msgNudge, h.say(t, "asdf"))
	assert.Empty(t, q.prompts)
}

func TestLongUnmatchedInputGoesToLLM(t *testing.T) {
	text := "what should the team focus on this week?"

	t.Run("failure", func(t *testing.T) {
		q := &fakeLLM{err: errors.New("upstream 500")}
		h := newHarness(t, true, q)

		assert.Equal(t, msgAIUnavailable, h.say(t, text))
		assert.Len(t, q.prompts, 1)
	})

	t.Run("empty reply", func(t *testing.T) {
		h := newHarness(t, true, &fakeLLM{})
		assert.Equal(t, msgAIUnavailable, h.say(t, text))
	})

	t.Run("no client", func(t *testing.T) {
		h := newHarness(t, true, nil)
		assert.Equal(t, msgAIUnavailable, h.say(t, text))
	})

	t.Run("success", func(t *testing.T) {
		q := &fakeLLM{reply: "Focus on Checkout."}
		h := newHarness(t, true, q)

		assert.Equal(t, "🤖 AI Assistant:\n\nFocus on Checkout.", h.say(t, text))
		assert.Equal(t, []string{"what should the team focus on this week"}, q.prompts)
	})
}

func TestGuidedTaskFlowCreatesOnce(t *testing.T) {
	h := newHarness(t, true, nil)

	assert.Equal(t, promptTaskTitle, h.say(t, "create task"))
	assert.Equal(t, promptTaskDescription, h.say(t, "  Write release notes "))
	assert.Equal(t, promptTaskAssignee, h.say(t, "Covers the 2.0 changes"))
	assert.Equal(t, promptTaskRemaining, h.say(t, "dana@example.com"))
	assert.Equal(t, "✅ Created Task #101", h.say(t, "3.5"))

	require.Len(t, h.backend.createdTasks, 1)
	assert.Equal(t, boards.NewTask{
		Title:         "Write release notes",
		Description:   "Covers the 2.0 changes",
		AssignedTo:    "dana@example.com",
		RemainingWork: 3.5,
	}, h.backend.createdTasks[0])

	sess, err := h.engine.sessions.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.False(t, sess.InFlow())
	assert.Empty(t, sess.Temp)

	assert.Equal(t, FormatHelp(), h.say(t, "help"))
}

func TestGuidedTaskFlowSkipsAndReprompts(t *testing.T) {
	h := newHarness(t, true, nil)

	h.say(t, "create task")
	assert.Equal(t, promptTaskTitle, h.say(t, "   "))
	h.say(t, "Write docs")
	h.say(t, "skip")
	h.say(t, "SKIP")
	h.say(t, "not a number")

	require.Len(t, h.backend.createdTasks, 1)
	assert.Equal(t, boards.NewTask{Title: "Write docs"}, h.backend.createdTasks[0])
}

func TestGuidedIssueFlow(t *testing.T) {
	h := newHarness(t, true, nil)

	assert.Equal(t, promptIssueTitle, h.say(t, "new user story"))
	assert.Equal(t, promptIssueDescription, h.say(t, "Password reset"))
	assert.Equal(t, promptIssueAcceptance, h.say(t, "skip"))
	assert.Equal(t, promptIssuePoints, h.say(t, "Email arrives within a minute"))
	assert.Equal(t, promptIssueAssignee, h.say(t, "5"))
	reply := h.say(t, "Sam")

	assert.Equal(t, "✅ Backlog item created\n#101: Password reset\nOpen in Azure Boards: https://example.test/101", reply)
	require.Len(t, h.backend.createdIssues, 1)
	assert.Equal(t, boards.NewIssue{
		Title:              "Password reset",
		AcceptanceCriteria: "Email arrives within a minute",
		StoryPoints:        5,
		AssignedTo:         "Sam",
	}, h.backend.createdIssues[0])
}

func TestCancel(t *testing.T) {
	h := newHarness(t, true, nil)

	assert.Equal(t, msgNothingToCancel, h.say(t, "cancel"))

	h.say(t, "create issue")
	h.say(t, "Half finished")
	assert.Equal(t, msgCancelled, h.say(t, "Cancel."))
	assert.Empty(t, h.backend.createdIssues)
	assert.Equal(t, FormatHelp(), h.say(t, "hi"))
}

func TestFlowInputBypassesRules(t *testing.T) {
	h := newHarness(t, true, nil)

	h.say(t, "create task")
	assert.Equal(t, promptTaskDescription, h.say(t, "help"))
	assert.Empty(t, h.backend.stateUpdates)
}

func TestQuickTask(t *testing.T) {
	h := newHarness(t, true, nil)

	reply := h.say(t, `create task "Rotate keys"`)

	assert.Equal(t, "✅ Created Task #101: Rotate keys", reply)
	require.Len(t, h.backend.createdTasks, 1)
	assert.Equal(t, "Rotate keys", h.backend.createdTasks[0].Title)
}

func TestCreateInSprint(t *testing.T) {
	h := newHarness(t, true, nil)

	reply := h.say(t, "create issue in sprint 2: Gift cards")

	assert.Equal(t, "✅ Created Issue #101 in Sprint 2", reply)
	require.Len(t, h.backend.createdIssues, 1)
	assert.Equal(t, boards.NewIssue{Title: "Gift cards", IterationPath: pathSprint2}, h.backend.createdIssues[0])
}

func TestGetItem(t *testing.T) {
	h := newHarness(t, true, nil)

	reply := h.say(t, "#28")
	assert.True(t, strings.HasPrefix(reply, "#28: Login page\nType: Issue\nState: Doing"), reply)
	assert.Contains(t, reply, "Open in Azure Boards: ")

	assert.Equal(t, "⚠️ Work item #999 not found.", h.say(t, "get 999"))
}

func TestDescribe(t *testing.T) {
	t.Run("falls back to plain description", func(t *testing.T) {
		h := newHarness(t, true, nil)
		reply := h.say(t, "describe #28")
		assert.True(t, strings.HasSuffix(reply, "\n\nUsers & admins sign in"), reply)
	})

	t.Run("summarises through the llm", func(t *testing.T) {
		q := &fakeLLM{reply: "- sign in for users and admins"}
		h := newHarness(t, true, q)

		reply := h.say(t, "what is login page about")

		assert.True(t, strings.HasPrefix(reply, "#28: Login page"), reply)
		assert.True(t, strings.HasSuffix(reply, "\n\n- sign in for users and admins"), reply)
		require.Len(t, q.prompts, 1)
		assert.Equal(t, "Summarize the following in 4-6 concise bullets:\n\nUsers & admins sign in", q.prompts[0])
	})

	t.Run("empty description", func(t *testing.T) {
		h := newHarness(t, true, nil)
		reply := h.say(t, "describe #29")
		assert.True(t, strings.HasSuffix(reply, "(No description provided)"), reply)
	})

	t.Run("unresolved", func(t *testing.T) {
		h := newHarness(t, true, nil)
		assert.Equal(t, msgItemNotFound, h.say(t, "describe the payment gateway"))
	})
}

func TestChildTasks(t *testing.T) {
	h := newHarness(t, true, nil)

	assert.Equal(t, "Child Tasks of #28 Login page:\n#30 Write tests [To Do]", h.say(t, "list tasks of #28"))
	assert.Equal(t, "No child Tasks found for #29 Checkout.", h.say(t, "show tasks for checkout"))
}

func TestLinkedBugs(t *testing.T) {
	h := newHarness(t, true, nil)

	assert.Equal(t, "Linked Bugs:\n#31 Login button misaligned [Doing]", h.say(t, "which bugs are linked to #28"))
	assert.Equal(t, "No linked Bugs found for #29.", h.say(t, "which bugs are linked to #29"))
}

func TestIssuesWithoutTasks(t *testing.T) {
	h := newHarness(t, true, nil)

	assert.Equal(t, "Issues without child Tasks:\n#29 Checkout", h.say(t, "list all issues that don't have any child tasks in sprint 3"))
	assert.Equal(t, "Issues without child Tasks:\n#29 Checkout", h.say(t, "list all issues that dont have any child tasks"))
	assert.Equal(t, "No Issues found in that sprint.", h.say(t, "list all issues that don't have any child tasks in sprint 2"))
}

func TestIssuesAndTasksInSprint(t *testing.T) {
	h := newHarness(t, true, nil)

	reply := h.say(t, "show issues and tasks in sprint 3")

	assert.Equal(t, "🧾 Issues in Sprint 3:\n#28: Login page [Doing]\n#29: Checkout [To Do]\n\n🧾 Tasks in Sprint 3:\n#30: Write tests [To Do]", reply)
}

func TestSearchPrefersCache(t *testing.T) {
	h := newHarness(t, true, nil)

	reply := h.say(t, "search login")

	assert.Contains(t, reply, `🔍 Search Results for "login" (2 found)`)
	assert.Contains(t, reply, "#28: Login page\nType: Issue | State: Doing | Sprint: Sprint 3")
	assert.Zero(t, h.backend.callCount())
	assert.Equal(t, reply, h.say(t, "search login"))
}

func TestTransientErrorsReadAsUnreachable(t *testing.T) {
	h := newHarness(t, true, nil)
	h.backend.latestErr = &boards.StatusError{StatusCode: 503}

	assert.Equal(t, "⚠️ Unable to list latest: Azure Boards is unreachable (timeout)", h.say(t, "list issues"))
}

func TestPanicsBecomeGenericFailure(t *testing.T) {
	h := newHarness(t, true, nil)
	h.backend.panicGet = true

	assert.Equal(t, msgGenericFailure, h.say(t, "get 28"))
	assert.Equal(t, FormatHelp(), h.say(t, "help"))
}

func TestUnknownSessionGetsFreshSession(t *testing.T) {
	h := newHarness(t, true, nil)

	assert.Equal(t, FormatHelp(), h.engine.HandleMessage(context.Background(), "never-connected", "help"))
	assert.Equal(t, 1, h.engine.ActiveSessions())
}

func TestConnectAndDisconnect(t *testing.T) {
	h := newHarness(t, true, nil)
	ctx := context.Background()

	id, greeting := h.engine.Connect(ctx, "127.0.0.1")
	require.NotEmpty(t, id)
	assert.Equal(t, []string{msgWelcome}, greeting)
	assert.Equal(t, 1, h.engine.ActiveSessions())

	h.engine.HandleMessage(ctx, id, "help")
	h.engine.Disconnect(ctx, id)

	assert.Zero(t, h.engine.ActiveSessions())
	assert.Equal(t, []string{id}, h.recorder.started)
	assert.Equal(t, []string{id}, h.recorder.ended)
	assert.Equal(t, []string{DirectionUser, DirectionBot}, h.recorder.turns)
}

func TestStatusMessages(t *testing.T) {
	loading := newHarness(t, false, nil)
	assert.Equal(t, []string{msgStillLoading, msgHelpHint}, loading.engine.StatusMessages())

	loaded := newHarness(t, true, nil)
	status := loaded.engine.StatusMessages()
	require.Len(t, status, 2)
	assert.True(t, strings.HasPrefix(status[0], "📊 Sprint Overview (Last 2 Sprints)"), status[0])
	assert.Equal(t, msgHelpHint, status[1])
}

func TestSessionsRunIndependently(t *testing.T) {
	h := newHarness(t, true, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i)
			for _, msg := range []string{"create task", fmt.Sprintf("Task %d", i), "skip", "skip", "1"} {
				h.engine.HandleMessage(ctx, id, msg)
			}
		}()
	}
	wg.Wait()

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	require.Len(t, h.backend.createdTasks, 20)
	titles := make(map[string]bool)
	for _, task := range h.backend.createdTasks {
		titles[task.Title] = true
		assert.Equal(t, float64(1), task.RemainingWork)
	}
	assert.Len(t, titles, 20)
}

func TestSweepIdleEvictsStaleSessions(t *testing.T) {
	h := newHarness(t, true, nil)
	ctx := context.Background()
	now := testNow
	h.engine.now = func() time.Time { return now }

	stale, _ := h.engine.Open(ctx, "a")
	now = now.Add(90 * time.Minute)
	fresh, _ := h.engine.Open(ctx, "b")
	now = now.Add(45 * time.Minute)

	assert.Equal(t, 1, h.engine.sweepIdle(ctx, 2*time.Hour))
	assert.Equal(t, 1, h.engine.ActiveSessions())
	assert.Equal(t, []string{stale}, h.recorder.ended)

	_, err := h.engine.sessions.Get(ctx, fresh)
	assert.NoError(t, err)
}

func TestSweepIdleKeepsConnectedSessions(t *testing.T) {
	h := newHarness(t, true, nil)
	ctx := context.Background()
	now := testNow
	h.engine.now = func() time.Time { return now }

	id, _ := h.engine.Connect(ctx, "ws-client")
	assert.Equal(t, promptTaskTitle, h.engine.HandleMessage(ctx, id, "create task"))

	now = now.Add(3 * time.Hour)
	assert.Zero(t, h.engine.sweepIdle(ctx, 2*time.Hour))
	assert.Empty(t, h.recorder.ended)

	assert.Equal(t, promptTaskDescription, h.engine.HandleMessage(ctx, id, "Write docs"))
}

func TestDisconnectAfterSweepEndsSessionOnce(t *testing.T) {
	h := newHarness(t, true, nil)
	ctx := context.Background()
	now := testNow
	h.engine.now = func() time.Time { return now }

	id, _ := h.engine.Open(ctx, "http-client")
	now = now.Add(3 * time.Hour)
	require.Equal(t, 1, h.engine.sweepIdle(ctx, 2*time.Hour))

	h.engine.Disconnect(ctx, id)
	h.engine.Disconnect(ctx, id)
	assert.Equal(t, []string{id}, h.recorder.ended)
}
