package blacklist

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Request is one parsed ban application flowing through the workflow. It is
// built once by Parse and never mutated afterwards.
type Request struct {
	UserID      string
	DisplayName string
	Reason      string
	MCUsername  string
	MCUUID      string
	RequestedBy string
}

// Intake threads are expected to look like:
//
//	Discord username: <text>
//	Discord user ID: <digits>
//	Minecraft username (if applicable): <text>
//	Minecraft UUID (if applicable): <text>
//	Reason: <free text, may span lines>
//
// with "DisplayName (digits)" accepted as a fallback for the first line.
const Format = "Discord username: <name>\n" +
	"Discord user ID: <numeric id>\n" +
	"Minecraft username (if applicable): <name>\n" +
	"Minecraft UUID (if applicable): <uuid>\n" +
	"Reason: <reason>\n\n" +
	"Alternatively the first line may be: DisplayName (numeric id)"

const (
	fieldUsername = iota
	fieldUserID
	fieldMCUsername
	fieldMCUUID
	fieldReason
)

var labels = []struct {
	prefix string
	field  int
}{
	{"discord user id", fieldUserID},
	{"discord username", fieldUsername},
	{"minecraft username", fieldMCUsername},
	{"minecraft uuid", fieldMCUUID},
	{"reason", fieldReason},
}

var fallbackLine = regexp.MustCompile(`^(.+?)\s*\((\d+)\)\s*$`)

// Parse extracts a Request from raw intake-thread text. The second return is
// false when the text is malformed; Parse never fails any harder than that.
func Parse(content string) (Request, bool) {
	var req Request
	found := make(map[int]bool)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		field, value, ok := matchLabel(line)
		if !ok || found[field] {
			continue
		}
		if field == fieldReason {
			// Reason is greedy: everything after the label belongs to it.
			rest := append([]string{value}, lines[i+1:]...)
			value = strings.TrimSpace(strings.Join(rest, "\n"))
			if value != "" {
				req.Reason = value
				found[fieldReason] = true
			}
			break
		}
		if value == "" {
			continue
		}
		found[field] = true
		switch field {
		case fieldUsername:
			req.DisplayName = value
		case fieldUserID:
			req.UserID = value
		case fieldMCUsername:
			req.MCUsername = value
		case fieldMCUUID:
			req.MCUUID = canonicalUUID(value)
		}
	}

	if !found[fieldUsername] || !found[fieldUserID] {
		if name, id, ok := parseFallbackLine(lines); ok {
			if !found[fieldUsername] {
				req.DisplayName = name
			}
			if !found[fieldUserID] {
				req.UserID = id
			}
		}
	}

	if req.DisplayName == "" || req.Reason == "" || !isNumericID(req.UserID) {
		return Request{}, false
	}
	return req, true
}

func matchLabel(line string) (field int, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return 0, "", false
	}
	label := normalizeLabel(line[:idx])
	for _, candidate := range labels {
		if strings.HasPrefix(label, candidate.prefix) {
			return candidate.field, strings.TrimSpace(line[idx+1:]), true
		}
	}
	return 0, "", false
}

// normalizeLabel lowercases the label and drops a trailing parenthetical
// qualifier such as "(if applicable)".
func normalizeLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	if open := strings.Index(label, "("); open >= 0 {
		label = strings.TrimSpace(label[:open])
	}
	return label
}

func parseFallbackLine(lines []string) (name, id string, ok bool) {
	if len(lines) == 0 {
		return "", "", false
	}
	match := fallbackLine.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if match == nil {
		return "", "", false
	}
	return strings.TrimSpace(match[1]), match[2], true
}

func isNumericID(value string) bool {
	if value == "" {
		return false
	}
	_, err := strconv.ParseUint(value, 10, 64)
	return err == nil
}

// canonicalUUID lowercases and hyphenates a Minecraft UUID when it parses as
// one; anything else passes through untouched since the registry treats the
// value as opaque.
func canonicalUUID(value string) string {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return value
	}
	return parsed.String()
}
