// Package directive extracts practice-launch directives embedded in
// AI-authored message text.
//
// The upstream sometimes renders a "start practice" affordance as an
// HTML-like button carrying a call-shaped parameter list:
//
//	<button class="cw-cta-btn" onclick="startPracticeSession('CS101','Trees','sess-1')">Start practice</button>
//
// Structured metadata on the message is the authoritative transport for
// directives; this parser is the legacy-compatibility decoder for replies
// that only carry the textual form. Malformed directives degrade to plain
// text; Parse never fails.
package directive

import (
	"regexp"
	"strings"
)

// SegmentType distinguishes plain text from an actionable button.
type SegmentType string

const (
	SegmentText   SegmentType = "text"
	SegmentButton SegmentType = "button"
)

// Segment is one piece of a parsed message body, in document order.
type Segment struct {
	Type SegmentType `json:"type"`

	// Content is the entity-decoded text (text segments only).
	Content string `json:"content,omitempty"`

	// Directive parameters (button segments only).
	Course    string `json:"course,omitempty"`
	Topic     string `json:"topic,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Label     string `json:"label,omitempty"`
}

const defaultButtonLabel = "Start Practice"

var (
	// buttonRe matches a button element whose class list contains the
	// cw-cta-btn marker. The inner text becomes the segment label.
	buttonRe = regexp.MustCompile(`(?is)<button\b[^>]*\bcw-cta-btn\b[^>]*>(.*?)</button>`)

	// callRe pulls the parameter list out of the embedded call expression.
	callRe = regexp.MustCompile(`startPracticeSession\s*\(([^)]*)\)`)

	tagRe = regexp.MustCompile(`<[^>]*>`)
)

// entityReplacer decodes the entity set the upstream is known to emit.
// A single-pass replacer never rescans replaced text, so already-decoded
// input passes through unchanged.
var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// Parse splits message content into an ordered list of text and button
// segments. Input with no recognizable directive markup yields a single
// text segment equal to the entity-decoded input. Parse never panics on
// malformed input.
func Parse(content string) []Segment {
	matches := buttonRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return []Segment{{Type: SegmentText, Content: decodeText(content)}}
	}

	var segments []Segment
	cursor := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		if start > cursor {
			appendText(&segments, content[cursor:start])
		}

		full := content[start:end]
		label := decodeText(content[m[2]:m[3]])

		if seg, ok := parseButton(full, label); ok {
			segments = append(segments, seg)
		} else {
			// A marker button without a parsable call expression is not
			// actionable; degrade it to its visible text.
			appendText(&segments, full)
		}
		cursor = end
	}

	if cursor < len(content) {
		appendText(&segments, content[cursor:])
	}

	if len(segments) == 0 {
		segments = []Segment{{Type: SegmentText, Content: decodeText(content)}}
	}
	return segments
}

// parseButton extracts course/topic/session parameters from the call
// expression inside a matched button element.
func parseButton(markup, label string) (Segment, bool) {
	call := callRe.FindStringSubmatch(entityReplacer.Replace(markup))
	if call == nil {
		return Segment{}, false
	}

	params := splitParams(call[1])
	if len(params) == 0 {
		return Segment{}, false
	}

	if label == "" {
		label = defaultButtonLabel
	}
	seg := Segment{Type: SegmentButton, Label: label}

	switch {
	case len(params) == 1:
		seg.Topic = params[0]
	case len(params) == 2:
		seg.Course = params[0]
		seg.Topic = params[1]
	default: // Three or more; extras are ignored.
		seg.Course = params[0]
		seg.Topic = params[1]
		seg.SessionID = params[2]
	}
	return seg, true
}

// splitParams splits a comma-separated parameter list, trimming space and
// stripping surrounding quote characters from each entry.
func splitParams(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	params := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `'"`+"`")
		params = append(params, p)
	}
	return params
}

func appendText(segments *[]Segment, raw string) {
	text := decodeText(raw)
	if text == "" {
		return
	}
	*segments = append(*segments, Segment{Type: SegmentText, Content: text})
}

// decodeText strips markup tags and decodes HTML entities.
func decodeText(raw string) string {
	return entityReplacer.Replace(tagRe.ReplaceAllString(raw, ""))
}
