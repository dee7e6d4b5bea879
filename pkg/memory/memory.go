// Package memory persists small per-role agent memories as a single
// JSON array file under the project data root. Agents write them via
// MEMORY protocol messages; the control API lists, creates, and deletes
// them.
package memory

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/albertnahas/teamclaude/pkg/persist"
)

// Memory is one remembered fact, keyed by (role, key).
type Memory struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Key          string    `json:"key"`
	Value        string    `json:"value"`
	SprintID     string    `json:"sprintId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	AccessCount  int       `json:"accessCount"`
	LastAccessed time.Time `json:"lastAccessed,omitempty"`
}

// Store owns memories.json. All methods are safe for concurrent use;
// each operation reads and rewrites the whole file, which stays small.
type Store struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
}

// NewStore returns a store over the given memories file.
func NewStore(path string) *Store {
	return &Store{path: path, clock: time.Now}
}

// Save upserts a memory on (role, key). An existing record keeps its id
// and createdAt while taking the new value and sprint id.
func (s *Store) Save(role, key, value, sprintID string) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	memories := s.load()
	for i := range memories {
		if memories[i].Role == role && memories[i].Key == key {
			memories[i].Value = value
			memories[i].SprintID = sprintID
			if err := s.save(memories); err != nil {
				return Memory{}, err
			}
			return memories[i], nil
		}
	}

	mem := Memory{
		ID:        uuid.New().String(),
		Role:      role,
		Key:       key,
		Value:     value,
		SprintID:  sprintID,
		CreatedAt: s.clock(),
	}
	memories = append(memories, mem)
	if err := s.save(memories); err != nil {
		return Memory{}, err
	}
	return mem, nil
}

// List returns memories matching the role filter (all when empty) and a
// free-text query over key and value, newest first. Returned memories
// get their access tracking bumped and persisted.
func (s *Store) List(role, query string) ([]Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	memories := s.load()
	query = strings.ToLower(strings.TrimSpace(query))

	var out []Memory
	touched := false
	for i := range memories {
		if role != "" && memories[i].Role != role {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(memories[i].Key), query) &&
			!strings.Contains(strings.ToLower(memories[i].Value), query) {
			continue
		}
		memories[i].AccessCount++
		memories[i].LastAccessed = s.clock()
		touched = true
		out = append(out, memories[i])
	}

	if touched {
		if err := s.save(memories); err != nil {
			return nil, err
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a memory by id, reporting whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	memories := s.load()
	for i := range memories {
		if memories[i].ID == id {
			memories = append(memories[:i], memories[i+1:]...)
			if err := s.save(memories); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// load reads the store; a missing or malformed file yields empty.
func (s *Store) load() []Memory {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var memories []Memory
	if err := json.Unmarshal(data, &memories); err != nil {
		slog.Warn("Ignoring malformed memories file", "file", s.path, "error", err)
		return nil
	}
	return memories
}

func (s *Store) save(memories []Memory) error {
	return persist.AtomicWriteJSON(s.path, memories)
}
