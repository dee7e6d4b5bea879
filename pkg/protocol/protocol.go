// Package protocol classifies inbox message bodies against the closed set
// of sprint protocol tags and extracts the task or cycle reference that
// follows them. The decoder is intentionally forgiving about envelope
// markup: host runtimes wrap agent output in routing brackets, mentions,
// and markdown emphasis that must not hide a tag.
package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

// Tag is a recognized uppercase protocol prefix in a message body.
type Tag string

const (
	TagTaskAssigned    Tag = "TASK_ASSIGNED"
	TagReadyForReview  Tag = "READY_FOR_REVIEW"
	TagApproved        Tag = "APPROVED"
	TagRequestChanges  Tag = "REQUEST_CHANGES"
	TagResubmit        Tag = "RESUBMIT"
	TagEscalate        Tag = "ESCALATE"
	TagMemory          Tag = "MEMORY"
	TagProcessLearning Tag = "PROCESS_LEARNING"
	TagRoadmapReady    Tag = "ROADMAP_READY"
	TagCycleComplete   Tag = "CYCLE_COMPLETE"
	TagSprintComplete  Tag = "SPRINT_COMPLETE"
	TagNextCycle       Tag = "NEXT_CYCLE"
	TagAcceptance      Tag = "ACCEPTANCE"
)

// orderedTags is the prefix-match order. Tags sharing no prefixes with each
// other, the order is fixed only for determinism.
var orderedTags = []Tag{
	TagTaskAssigned,
	TagReadyForReview,
	TagApproved,
	TagRequestChanges,
	TagResubmit,
	TagEscalate,
	TagMemory,
	TagProcessLearning,
	TagRoadmapReady,
	TagCycleComplete,
	TagSprintComplete,
	TagNextCycle,
	TagAcceptance,
}

// IsValid checks whether the tag is a member of the closed set.
func (t Tag) IsValid() bool {
	for _, known := range orderedTags {
		if t == known {
			return true
		}
	}
	return false
}

// IsCycleScoped reports whether the tag drives the autonomous cycle phase
// machine rather than a single task.
func (t Tag) IsCycleScoped() bool {
	switch t {
	case TagRoadmapReady, TagCycleComplete, TagSprintComplete, TagNextCycle, TagAcceptance:
		return true
	}
	return false
}

// IdleSentinelPrefix marks a body that reports the recipient going idle
// instead of carrying content.
const IdleSentinelPrefix = "[idle:"

// Envelope markup patterns stripped from the front of a body before tag
// detection (compiled once).
var (
	messageFromPattern = regexp.MustCompile(`^\[message from [^\]]+\]\s*:?\s*`)
	responseToPattern  = regexp.MustCompile(`^\[response to [^\]]+\]\s*:?\s*`)
	mentionPattern     = regexp.MustCompile(`^@[\w.-]+\s*:?\s*`)
	// Reference token immediately after a tag: optional colon, optional bold
	// markers, optional # prefix, digits.
	refPattern = regexp.MustCompile(`^\s*:?\s*\*{0,2}\s*#?(\d+)`)
	// Fallback for cycle-scoped tags whose number sits inside prose.
	anyDigitsPattern = regexp.MustCompile(`\d+`)
)

// Strip removes well-known envelope markup from the start of a body:
// leading whitespace, `[message from X]` / `[response to X]` routing
// brackets, one leading @mention, and markdown bold markers. Bracket
// envelopes can nest, so stripping repeats until the prefix is stable.
func Strip(content string) string {
	s := strings.TrimSpace(content)
	mentionStripped := false
	for {
		prev := s
		s = messageFromPattern.ReplaceAllString(s, "")
		s = responseToPattern.ReplaceAllString(s, "")
		if !mentionStripped {
			if next := mentionPattern.ReplaceAllString(s, ""); next != s {
				s = next
				mentionStripped = true
			}
		}
		s = strings.TrimPrefix(s, "**")
		s = strings.TrimLeft(s, " \t\r\n")
		if s == prev {
			return s
		}
	}
}

// IsIdleSentinel reports whether a stripped body is the idle marker.
func IsIdleSentinel(content string) bool {
	return strings.HasPrefix(content, IdleSentinelPrefix)
}

// Decoded is the result of classifying a message body.
type Decoded struct {
	Tag Tag

	// Ref is the digits token immediately after the tag ("" when absent).
	// For task-scoped tags it is the task id; for cycle-scoped tags it is
	// the explicit cycle number.
	Ref string

	// Body is the remainder after the tag and its separator, used by the
	// MEMORY and PROCESS_LEARNING body parsers.
	Body string
}

// TaskID returns the referenced task id, or "" when the tag carried none.
func (d *Decoded) TaskID() string { return d.Ref }

// Cycle returns the explicit cycle number carried by a cycle-scoped tag.
// When the immediate token is absent the whole body is searched, since
// roadmap announcements tend to bury the number in prose.
func (d *Decoded) Cycle() (int, bool) {
	ref := d.Ref
	if ref == "" {
		ref = anyDigitsPattern.FindString(d.Body)
	}
	if ref == "" {
		return 0, false
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Decode classifies a message body. The caller is expected to have
// stripped envelope markup first (see Strip); Decode itself only matches
// the tag at the very start. Returns nil when no tag matches.
func Decode(content string) *Decoded {
	for _, tag := range orderedTags {
		rest, ok := matchTag(content, tag)
		if !ok {
			continue
		}
		d := &Decoded{Tag: tag}
		if m := refPattern.FindStringSubmatch(rest); m != nil {
			d.Ref = m[1]
		}
		d.Body = strings.TrimSpace(strings.TrimLeft(rest, ":* \t"))
		return d
	}
	return nil
}

// matchTag checks whether content starts with the tag followed by a
// boundary character, returning the remainder. The boundary requirement
// keeps APPROVED from matching APPROVED_SOMETHING_ELSE.
func matchTag(content string, tag Tag) (string, bool) {
	if !strings.HasPrefix(content, string(tag)) {
		return "", false
	}
	rest := content[len(tag):]
	if rest == "" {
		return rest, true
	}
	switch rest[0] {
	case ':', ' ', '\t', '\r', '\n', '*':
		return rest, true
	}
	return "", false
}

// Separators accepted between the key and value of MEMORY and
// PROCESS_LEARNING bodies. Host runtimes emit em-dashes, hyphens, or
// colons interchangeably; spaced forms first so hyphenated keys survive.
var bodySeparators = []string{" — ", "—", " – ", " - ", ":"}

// splitBody splits a tag body into its two halves at the first separator.
func splitBody(body string) (string, string, bool) {
	idx := -1
	sepLen := 0
	for _, sep := range bodySeparators {
		if i := strings.Index(body, sep); i >= 0 && (idx == -1 || i < idx) {
			idx = i
			sepLen = len(sep)
		}
	}
	if idx < 0 {
		return "", "", false
	}
	left := strings.TrimSpace(body[:idx])
	right := strings.TrimSpace(body[idx+sepLen:])
	if left == "" || right == "" {
		return "", "", false
	}
	return left, right, true
}

// ParseMemory extracts the key and value from a MEMORY tag body
// (`<key> — <value>`).
func ParseMemory(body string) (key, value string, ok bool) {
	return splitBody(body)
}

// ParseLearning extracts the role and action from a PROCESS_LEARNING tag
// body (`<role> — <action>`). The role is lowercased; validity against
// the known role set is the caller's concern.
func ParseLearning(body string) (role, action string, ok bool) {
	role, action, ok = splitBody(body)
	if !ok {
		return "", "", false
	}
	return strings.ToLower(role), action, true
}
