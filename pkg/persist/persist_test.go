package persist

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/paths"
)

// trackedState wraps a SprintState with a lock so tests can mutate it
// while the persister's timer goroutine snapshots.
type trackedState struct {
	mu     sync.Mutex
	st     *models.SprintState
	writes int
}

func newTrackedState() *trackedState {
	return &trackedState{st: models.NewSprintState()}
}

func (ts *trackedState) snapshot() *models.SprintState {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.writes++
	return ts.st.Clone()
}

func (ts *trackedState) set(fn func(st *models.SprintState)) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	fn(ts.st)
}

func (ts *trackedState) writeCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.writes
}

func TestScheduleCoalesces(t *testing.T) {
	project := paths.NewProject(t.TempDir())
	tracked := newTrackedState()
	p := NewPersister(project, tracked.snapshot)
	p.delay = 50 * time.Millisecond

	for i := 1; i <= 5; i++ {
		cycle := i
		tracked.set(func(st *models.SprintState) { st.Cycle = cycle })
		p.Schedule()
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		_, err := os.Stat(project.StateFile())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, tracked.writeCount(), "burst of schedules should coalesce into one write")

	loaded := LoadState(project)
	require.NotNil(t, loaded)
	assert.Equal(t, 5, loaded.Cycle, "the write should carry the newest state")
}

func TestFlushCancelsPendingDebounce(t *testing.T) {
	project := paths.NewProject(t.TempDir())
	tracked := newTrackedState()
	tracked.set(func(st *models.SprintState) { st.TeamName = "sprint-alpha" })
	p := NewPersister(project, tracked.snapshot)
	p.delay = 50 * time.Millisecond

	p.Schedule()
	require.NoError(t, p.Flush())

	loaded := LoadState(project)
	require.NotNil(t, loaded)
	assert.Equal(t, "sprint-alpha", loaded.TeamName)

	// The scheduled timer must not fire a second write.
	time.Sleep(3 * p.delay)
	assert.Equal(t, 1, tracked.writeCount())
}

func TestResumeRoundTrip(t *testing.T) {
	project := paths.NewProject(t.TempDir())

	st := models.NewSprintState()
	st.TeamName = "sprint-alpha"
	st.SprintID = "sprint-20260824-120000"
	st.Phase = models.PhaseSprinting
	st.Cycle = 2
	st.Tasks = append(st.Tasks, models.Task{ID: "1", Subject: "Build parser", Status: models.TaskInProgress})
	st.SetCursor("/inbox/sprint-manager.json", 4)
	st.RaiseOverrideStatus("1", models.TaskCompleted)
	st.TokenUsage.Total = 1234
	st.TmuxAvailable = true
	st.TmuxSessionName = "old-session"
	st.ProjectName = "old-project"

	p := NewPersister(project, st.Clone)
	require.NoError(t, p.Write())

	persisted := LoadState(project)
	require.NotNil(t, persisted)

	live := models.NewSprintState()
	live.TmuxAvailable = false
	live.TmuxSessionName = "new-session"
	live.ProjectName = "new-project"
	live.RestoreFrom(persisted)

	assert.Equal(t, "sprint-alpha", live.TeamName)
	assert.Equal(t, models.PhaseSprinting, live.Phase)
	assert.Equal(t, 2, live.Cycle)
	assert.Equal(t, 4, live.Cursor("/inbox/sprint-manager.json"))
	assert.Equal(t, models.TaskCompleted, live.StatusOverrides["1"].Status)
	assert.Equal(t, 1234, live.TokenUsage.Total)

	// Runtime-only fields come from the running process, not the file.
	assert.False(t, live.TmuxAvailable)
	assert.Equal(t, "new-session", live.TmuxSessionName)
	assert.Equal(t, "new-project", live.ProjectName)
}

func TestLoadStateMissingAndMalformed(t *testing.T) {
	project := paths.NewProject(t.TempDir())
	assert.Nil(t, LoadState(project))

	require.NoError(t, EnsureProjectRoot(project))
	require.NoError(t, os.WriteFile(project.StateFile(), []byte("{not json"), 0o644))
	assert.Nil(t, LoadState(project))
}

func TestEnsureProjectRootSeedsGitignoreOnce(t *testing.T) {
	project := paths.NewProject(t.TempDir())

	require.NoError(t, EnsureProjectRoot(project))
	data, err := os.ReadFile(project.GitignoreFile())
	require.NoError(t, err)
	assert.Equal(t, "*\n", string(data))

	// A user edit survives later ensures.
	require.NoError(t, os.WriteFile(project.GitignoreFile(), []byte("state.json\n"), 0o644))
	require.NoError(t, EnsureProjectRoot(project))
	data, err = os.ReadFile(project.GitignoreFile())
	require.NoError(t, err)
	assert.Equal(t, "state.json\n", string(data))
}

func TestWriteHistory(t *testing.T) {
	project := paths.NewProject(t.TempDir())

	st := models.NewSprintState()
	st.Tasks = append(st.Tasks, models.Task{ID: "1", Subject: "Ship it", Status: models.TaskCompleted})
	st.Messages = append(st.Messages, models.Message{ID: "100-0", From: "sprint-manager", To: "sprint-engineer", Content: "APPROVED #1"})
	record := models.NewSprintRecord(st, time.Now())

	require.NoError(t, WriteHistory(project, "sprint-1", st, "# Retro\n\nAll done.\n", record))

	dir := project.HistoryDir("sprint-1")
	for _, name := range []string{"tasks.json", "messages.json", "retro.md", "record.json"} {
		_, err := os.Stat(dir + "/" + name)
		assert.NoError(t, err, name)
	}

	retro, err := os.ReadFile(dir + "/retro.md")
	require.NoError(t, err)
	assert.Contains(t, string(retro), "All done.")
}

func TestAppendAnalytics(t *testing.T) {
	project := paths.NewProject(t.TempDir())

	first := models.SprintRecord{SprintID: "sprint-1", TasksTotal: 3, TasksCompleted: 3}
	second := models.SprintRecord{SprintID: "sprint-2", TasksTotal: 2, TasksCompleted: 1}

	require.NoError(t, AppendAnalytics(project, first))
	require.NoError(t, AppendAnalytics(project, second))

	records := LoadAnalytics(project)
	require.Len(t, records, 2)
	assert.Equal(t, "sprint-1", records[0].SprintID)
	assert.Equal(t, "sprint-2", records[1].SprintID)
	assert.False(t, records[0].Incomplete())
	assert.True(t, records[1].Incomplete())
}

func TestListRecordings(t *testing.T) {
	project := paths.NewProject(t.TempDir())
	assert.Empty(t, ListRecordings(project))

	for _, id := range []string{"sprint-1", "sprint-2"} {
		require.NoError(t, os.MkdirAll(project.HistoryDir(id), 0o755))
	}
	// Only sprint-2 has a recording.
	require.NoError(t, os.WriteFile(project.ReplayFile("sprint-2"), []byte("{}\n"), 0o644))

	assert.Equal(t, []string{"sprint-2"}, ListRecordings(project))
}
