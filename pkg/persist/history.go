package persist

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/paths"
)

// WriteHistory writes the end-of-sprint snapshot directory: final task
// and message lists, the generated retro, and the analytics record. The
// replay recording already lives in the directory when recording was on.
func WriteHistory(project *paths.Project, sprintID string, st *models.SprintState, retro string, record models.SprintRecord) error {
	dir := project.HistoryDir(sprintID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := AtomicWriteJSON(filepath.Join(dir, "tasks.json"), st.Tasks); err != nil {
		return err
	}
	if err := AtomicWriteJSON(filepath.Join(dir, "messages.json"), st.Messages); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, "retro.md"), []byte(retro)); err != nil {
		return err
	}
	return AtomicWriteJSON(filepath.Join(dir, "record.json"), record)
}

// AppendAnalytics appends one sprint record to the analytics array,
// creating the file on first use. A malformed existing file is rebuilt
// rather than blocking the stop path.
func AppendAnalytics(project *paths.Project, record models.SprintRecord) error {
	if err := EnsureProjectRoot(project); err != nil {
		return err
	}
	records := LoadAnalytics(project)
	records = append(records, record)
	return AtomicWriteJSON(project.AnalyticsFile(), records)
}

// LoadAnalytics returns all recorded sprint records, oldest first. A
// missing or malformed file yields nil.
func LoadAnalytics(project *paths.Project) []models.SprintRecord {
	data, err := os.ReadFile(project.AnalyticsFile())
	if err != nil {
		return nil
	}
	var records []models.SprintRecord
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Warn("Ignoring malformed analytics file", "file", project.AnalyticsFile(), "error", err)
		return nil
	}
	return records
}

// ListRecordings returns the sprint ids under history/ that have a replay
// recording, newest first by directory modification time.
func ListRecordings(project *paths.Project) []string {
	entries, err := os.ReadDir(project.HistoryRoot())
	if err != nil {
		return nil
	}

	type rec struct {
		id  string
		mod int64
	}
	var recs []rec
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(project.ReplayFile(e.Name()))
		if err != nil {
			continue
		}
		recs = append(recs, rec{id: e.Name(), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].mod > recs[j].mod })

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.id
	}
	return ids
}
