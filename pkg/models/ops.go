package models

// Collection operations over SprintState. The review and validating
// lists are ordered, dedup on insert, and mutually exclusive: a task id
// lives in at most one of them at any moment.

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// AddReviewTask queues a task for review. Returns false on a duplicate
// request (the id is already queued). An id still in ValidatingTaskIDs
// moves back to review: the re-review supersedes the stale approval.
func (s *SprintState) AddReviewTask(id string) bool {
	if containsID(s.ReviewTaskIDs, id) {
		return false
	}
	s.ValidatingTaskIDs = removeID(s.ValidatingTaskIDs, id)
	s.ReviewTaskIDs = append(s.ReviewTaskIDs, id)
	return true
}

// RemoveReviewTask dequeues a task from review, reporting whether it was
// queued.
func (s *SprintState) RemoveReviewTask(id string) bool {
	if !containsID(s.ReviewTaskIDs, id) {
		return false
	}
	s.ReviewTaskIDs = removeID(s.ReviewTaskIDs, id)
	return true
}

// MoveToValidating transfers an approved task from the review list to the
// validating list.
func (s *SprintState) MoveToValidating(id string) {
	s.ReviewTaskIDs = removeID(s.ReviewTaskIDs, id)
	if !containsID(s.ValidatingTaskIDs, id) {
		s.ValidatingTaskIDs = append(s.ValidatingTaskIDs, id)
	}
}

// RemoveValidatingTask removes a task from the validating list, reporting
// whether it was present. Verification completions use the report to
// discard results that a later transition made stale.
func (s *SprintState) RemoveValidatingTask(id string) bool {
	if !containsID(s.ValidatingTaskIDs, id) {
		return false
	}
	s.ValidatingTaskIDs = removeID(s.ValidatingTaskIDs, id)
	return true
}

// InReview reports whether the task is queued for review.
func (s *SprintState) InReview(id string) bool {
	return containsID(s.ReviewTaskIDs, id)
}

// Cursor returns the count of already-processed messages for an inbox
// path.
func (s *SprintState) Cursor(path string) int {
	return s.InboxCursors[path]
}

// SetCursor records the count of processed messages for an inbox path.
func (s *SprintState) SetCursor(path string, n int) {
	if s.InboxCursors == nil {
		s.InboxCursors = make(map[string]int)
	}
	s.InboxCursors[path] = n
}

// RaiseOverrideStatus records a protocol-derived status for a task. When
// an override already exists the higher rank wins, so a late
// TASK_ASSIGNED can never demote a completed task. Returns the effective
// override.
func (s *SprintState) RaiseOverrideStatus(id string, status TaskStatus) StatusOverride {
	if s.StatusOverrides == nil {
		s.StatusOverrides = make(map[string]StatusOverride)
	}
	ov := s.StatusOverrides[id]
	ov.Status = MaxStatus(ov.Status, status)
	s.StatusOverrides[id] = ov
	return ov
}

// SetOverrideOwner records the protocol-derived owner for a task.
func (s *SprintState) SetOverrideOwner(id, owner string) {
	if s.StatusOverrides == nil {
		s.StatusOverrides = make(map[string]StatusOverride)
	}
	ov := s.StatusOverrides[id]
	ov.Owner = owner
	s.StatusOverrides[id] = ov
}

// ApplyOverride adjusts an on-disk task by the override table: status may
// only rise, owner is taken from the override when set.
func (s *SprintState) ApplyOverride(t *Task) {
	ov, ok := s.StatusOverrides[t.ID]
	if !ok {
		return
	}
	t.Status = MaxStatus(t.Status, ov.Status)
	if ov.Owner != "" {
		t.Owner = ov.Owner
	}
}

// AddCheckpoint registers a task id for the human-approval gate.
func (s *SprintState) AddCheckpoint(id string) bool {
	if containsID(s.Checkpoints, id) {
		return false
	}
	s.Checkpoints = append(s.Checkpoints, id)
	return true
}

// RemoveCheckpoint unregisters a checkpointed task id.
func (s *SprintState) RemoveCheckpoint(id string) bool {
	if !containsID(s.Checkpoints, id) {
		return false
	}
	s.Checkpoints = removeID(s.Checkpoints, id)
	return true
}

// HasCheckpoint reports whether the task id is checkpoint-gated.
func (s *SprintState) HasCheckpoint(id string) bool {
	return containsID(s.Checkpoints, id)
}

// ResetForStop clears all sprint-scoped state in place, preserving the
// runtime-only fields that describe the running process environment.
func (s *SprintState) ResetForStop() {
	tmuxAvailable, tmuxSession, project := s.TmuxAvailable, s.TmuxSessionName, s.ProjectName
	*s = *NewSprintState()
	s.TmuxAvailable = tmuxAvailable
	s.TmuxSessionName = tmuxSession
	s.ProjectName = project
}

// RestoreFrom replaces this state with a persisted one, keeping the live
// runtime-only fields. Collections decoded as JSON null are reallocated
// so callers never see nil maps or slices.
func (s *SprintState) RestoreFrom(persisted *SprintState) {
	tmuxAvailable, tmuxSession, project := s.TmuxAvailable, s.TmuxSessionName, s.ProjectName
	*s = *persisted.Clone()
	s.TmuxAvailable = tmuxAvailable
	s.TmuxSessionName = tmuxSession
	s.ProjectName = project
	s.normalize()
}

// normalize allocates nil collections left behind by JSON decoding.
func (s *SprintState) normalize() {
	if s.Agents == nil {
		s.Agents = []Agent{}
	}
	if s.Tasks == nil {
		s.Tasks = []Task{}
	}
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.ReviewTaskIDs == nil {
		s.ReviewTaskIDs = []string{}
	}
	if s.ValidatingTaskIDs == nil {
		s.ValidatingTaskIDs = []string{}
	}
	if s.Checkpoints == nil {
		s.Checkpoints = []string{}
	}
	if s.TokenUsage.ByAgent == nil {
		s.TokenUsage.ByAgent = make(map[string]int)
	}
	if s.InboxCursors == nil {
		s.InboxCursors = make(map[string]int)
	}
	if s.StatusOverrides == nil {
		s.StatusOverrides = make(map[string]StatusOverride)
	}
}
