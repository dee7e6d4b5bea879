// Package learning maintains the process learnings store: durable
// per-role lessons derived from sprint outcomes. Signal detectors mine
// each finished sprint's analytics record; agents contribute their own
// reflections through PROCESS_LEARNING messages. Learnings accumulate a
// frequency across sprints so recurring problems rank first.
package learning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/persist"
)

// StoreVersion is the learnings.json schema version.
const StoreVersion = 1

// MaxReflectionsPerSprint caps how many distinct agent reflections one
// sprint may record.
const MaxReflectionsPerSprint = 5

// Learning sources.
const (
	SourceSignal = "signal"
	SourceAgent  = "agent"
)

// Learning is one durable lesson, keyed deterministically so the same
// lesson upserts instead of duplicating.
type Learning struct {
	ID        string           `json:"id"`
	Role      models.AgentRole `json:"role"`
	Action    string           `json:"action"`
	Source    string           `json:"source"`
	Signal    string           `json:"signal,omitempty"`
	Frequency int              `json:"frequency"`
	SprintIDs []string         `json:"sprintIds"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type learningsFile struct {
	Version   int        `json:"version"`
	Learnings []Learning `json:"learnings"`
}

// signal is one entry of the fixed detector registry. fires inspects a
// finished sprint's analytics record.
type signal struct {
	name   string
	role   models.AgentRole
	action string
	fires  func(models.SprintRecord) bool
}

var signalRegistry = []signal{
	{
		name:   "BUDGET_EXCEEDED",
		role:   models.RolePM,
		action: "The token budget ran out before the sprint finished. Size the backlog to the configured budget or raise the limit up front.",
		fires:  func(r models.SprintRecord) bool { return r.BudgetExceeded },
	},
	{
		name:   "ESCALATION_STORM",
		role:   models.RoleManager,
		action: "Multiple escalations were raised in one sprint. Triage blockers as they appear instead of letting them pile up.",
		fires:  func(r models.SprintRecord) bool { return r.Stats.Escalations >= 2 },
	},
	{
		name:   "REVIEW_CHURN",
		role:   models.RoleEngineer,
		action: "Reviews needed repeated change requests. Self-review against the task description before requesting review.",
		fires: func(r models.SprintRecord) bool {
			return r.Stats.ChangeRequests > 0 && r.Stats.ChangeRequests >= 2*r.Stats.Approvals
		},
	},
	{
		name:   "SPRINT_INCOMPLETE",
		role:   models.RolePM,
		action: "The sprint stopped with unfinished tasks. Plan fewer tasks per cycle or split the large ones.",
		fires:  func(r models.SprintRecord) bool { return r.TasksTotal > 0 && r.Incomplete() },
	},
	{
		name:   "VALIDATION_FAILURES",
		role:   models.RoleEngineer,
		action: "Verification checks failed during the sprint. Run the configured checks locally before marking work ready for review.",
		fires:  func(r models.SprintRecord) bool { return r.Stats.ValidationFailures >= 1 },
	},
}

// Store owns learnings.json. Safe for concurrent use.
type Store struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
}

// NewStore returns a store over the given learnings file.
func NewStore(path string) *Store {
	return &Store{path: path, clock: time.Now}
}

// RunDetectors feeds one finished sprint through the signal registry and
// upserts a learning for every firing signal. Returns the learnings
// touched, in registry order.
func (s *Store) RunDetectors(record models.SprintRecord) ([]Learning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := s.load()
	var fired []Learning
	for _, sig := range signalRegistry {
		if !sig.fires(record) {
			continue
		}
		id := sig.name + ":" + string(sig.role)
		l := upsert(&file, id, Learning{
			ID:     id,
			Role:   sig.role,
			Action: sig.action,
			Source: SourceSignal,
			Signal: sig.name,
		}, record.SprintID, s.clock())
		fired = append(fired, l)
	}

	if len(fired) == 0 {
		return nil, nil
	}
	if err := s.save(file); err != nil {
		return nil, err
	}
	return fired, nil
}

// RecordReflection upserts an agent-supplied PROCESS_LEARNING. The id is
// derived from the normalized action and role, so rephrased whitespace
// or casing still lands on the same learning. Returns false when the
// sprint already holds the maximum number of distinct reflections.
func (s *Store) RecordReflection(role models.AgentRole, action, sprintID string) (Learning, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := s.load()
	id := ReflectionID(role, action)

	if reflectionsInSprint(file.Learnings, sprintID, id) >= MaxReflectionsPerSprint {
		slog.Debug("Dropping reflection beyond per-sprint cap", "role", role, "sprint_id", sprintID)
		return Learning{}, false, nil
	}

	l := upsert(&file, id, Learning{
		ID:     id,
		Role:   role,
		Action: strings.TrimSpace(action),
		Source: SourceAgent,
	}, sprintID, s.clock())

	if err := s.save(file); err != nil {
		return Learning{}, false, err
	}
	return l, true, nil
}

// List returns every learning, highest frequency first.
func (s *Store) List() ([]Learning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := s.load()
	sortLearnings(file.Learnings)
	return file.Learnings, nil
}

// Delete removes a learning by id, reporting whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := s.load()
	for i := range file.Learnings {
		if file.Learnings[i].ID == id {
			file.Learnings = append(file.Learnings[:i], file.Learnings[i+1:]...)
			if err := s.save(file); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// Summary partitions learnings by role, each list capped at perRole and
// ordered by frequency. Consumed at sprint start by the prompt side.
func (s *Store) Summary(perRole int) (map[models.AgentRole][]Learning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := s.load()
	sortLearnings(file.Learnings)

	summary := make(map[models.AgentRole][]Learning)
	for _, l := range file.Learnings {
		if perRole > 0 && len(summary[l.Role]) >= perRole {
			continue
		}
		summary[l.Role] = append(summary[l.Role], l)
	}
	return summary, nil
}

// ReflectionID derives the deterministic id for an agent reflection:
// AGENT:<first 12 hex of sha256 over normalized action + role>.
func ReflectionID(role models.AgentRole, action string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(action)), " ")
	sum := sha256.Sum256([]byte(normalized + "|" + string(role)))
	return "AGENT:" + hex.EncodeToString(sum[:])[:12]
}

// upsert merges one learning into the file: an existing id gains
// frequency and the sprint id; a new one starts at frequency 1.
func upsert(file *learningsFile, id string, fresh Learning, sprintID string, now time.Time) Learning {
	for i := range file.Learnings {
		if file.Learnings[i].ID != id {
			continue
		}
		l := &file.Learnings[i]
		l.Frequency++
		l.UpdatedAt = now
		if sprintID != "" && !containsString(l.SprintIDs, sprintID) {
			l.SprintIDs = append(l.SprintIDs, sprintID)
		}
		return *l
	}

	fresh.Frequency = 1
	fresh.CreatedAt = now
	fresh.UpdatedAt = now
	if sprintID != "" {
		fresh.SprintIDs = []string{sprintID}
	}
	file.Learnings = append(file.Learnings, fresh)
	return fresh
}

// reflectionsInSprint counts distinct agent reflections already recorded
// for a sprint, excluding the id about to be upserted so a repeat of an
// already-counted reflection is never blocked.
func reflectionsInSprint(learnings []Learning, sprintID, excludeID string) int {
	count := 0
	for _, l := range learnings {
		if l.Source == SourceAgent && l.ID != excludeID && containsString(l.SprintIDs, sprintID) {
			count++
		}
	}
	return count
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortLearnings(learnings []Learning) {
	sort.SliceStable(learnings, func(i, j int) bool {
		if learnings[i].Frequency != learnings[j].Frequency {
			return learnings[i].Frequency > learnings[j].Frequency
		}
		return learnings[i].UpdatedAt.After(learnings[j].UpdatedAt)
	})
}

// load reads the store; missing, malformed, or future-versioned files
// yield an empty store rather than blocking the stop path.
func (s *Store) load() learningsFile {
	file := learningsFile{Version: StoreVersion}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return file
	}
	if err := json.Unmarshal(data, &file); err != nil {
		slog.Warn("Ignoring malformed learnings file", "file", s.path, "error", err)
		return learningsFile{Version: StoreVersion}
	}
	if file.Version != StoreVersion {
		slog.Warn("Ignoring learnings file with unknown version", "file", s.path, "version", file.Version)
		return learningsFile{Version: StoreVersion}
	}
	return file
}

func (s *Store) save(file learningsFile) error {
	file.Version = StoreVersion
	return persist.AtomicWriteJSON(s.path, file)
}
