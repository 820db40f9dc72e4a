package directive

import (
	"reflect"
	"testing"
)

func TestParsePlainText(t *testing.T) {
	got := Parse("Hello, how can I help you today?")
	want := []Segment{{Type: SegmentText, Content: "Hello, how can I help you today?"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParseFullDirective(t *testing.T) {
	content := `Sure! <button class="cw-cta-btn" onclick="startPracticeSession('CS101', 'Binary Trees', 'sess-42')">Start now</button> Good luck!`

	got := Parse(content)
	if len(got) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(got), got)
	}

	if got[0].Type != SegmentText || got[0].Content != "Sure! " {
		t.Errorf("leading text segment = %+v", got[0])
	}

	btn := got[1]
	if btn.Type != SegmentButton {
		t.Fatalf("expected button segment, got %+v", btn)
	}
	if btn.Course != "CS101" || btn.Topic != "Binary Trees" || btn.SessionID != "sess-42" {
		t.Errorf("button params = %+v", btn)
	}
	if btn.Label != "Start now" {
		t.Errorf("label = %q, want %q", btn.Label, "Start now")
	}

	if got[2].Type != SegmentText || got[2].Content != " Good luck!" {
		t.Errorf("trailing text segment = %+v", got[2])
	}
}

func TestParseParamArity(t *testing.T) {
	tests := []struct {
		name    string
		call    string
		course  string
		topic   string
		session string
	}{
		{"one param is topic only", `startPracticeSession('Recursion')`, "", "Recursion", ""},
		{"two params are course and topic", `startPracticeSession('MATH201', 'Limits')`, "MATH201", "Limits", ""},
		{"three params add session id", `startPracticeSession('PHY1', 'Optics', 'abc')`, "PHY1", "Optics", "abc"},
		{"extra params ignored", `startPracticeSession('A', 'B', 'C', 'D')`, "A", "B", "C"},
		{"double quotes accepted", `startPracticeSession("CS1", "Sorting")`, "CS1", "Sorting", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `<button class="cw-cta-btn" onclick="` + tt.call + `">Go</button>`
			got := Parse(content)
			if len(got) != 1 || got[0].Type != SegmentButton {
				t.Fatalf("expected single button segment, got %+v", got)
			}
			b := got[0]
			if b.Course != tt.course || b.Topic != tt.topic || b.SessionID != tt.session {
				t.Errorf("got course=%q topic=%q session=%q, want %q/%q/%q",
					b.Course, b.Topic, b.SessionID, tt.course, tt.topic, tt.session)
			}
		})
	}
}

func TestParseMalformedDegradesToText(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"marker without call", `<button class="cw-cta-btn">Click me</button>`},
		{"empty param list", `<button class="cw-cta-btn" onclick="startPracticeSession()">Go</button>`},
		{"unclosed button", `<button class="cw-cta-btn" onclick="startPracticeSession('CS1','X')">Go`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.content)
			for _, seg := range got {
				if seg.Type == SegmentButton {
					t.Errorf("malformed input produced a button segment: %+v", got)
				}
			}
			if len(got) == 0 {
				t.Error("expected at least one text segment")
			}
		})
	}
}

func TestParseIgnoresUnmarkedButtons(t *testing.T) {
	content := `<button onclick="startPracticeSession('CS1','X')">Other</button>`
	got := Parse(content)
	if len(got) != 1 || got[0].Type != SegmentText {
		t.Fatalf("expected single text segment, got %+v", got)
	}
	if got[0].Content != "Other" {
		t.Errorf("content = %q, want %q", got[0].Content, "Other")
	}
}

func TestParseEntityDecoding(t *testing.T) {
	// Tags are stripped before entity decoding, so an encoded angle
	// bracket survives as literal text instead of being eaten.
	got := Parse("Trees &amp; Graphs &lt;intro&gt;&nbsp;&#39;quoted&#39;")
	want := "Trees & Graphs <intro> 'quoted'"
	if len(got) != 1 || got[0].Content != want {
		t.Errorf("decoded = %q, want %q", got[0].Content, want)
	}
}

func TestParseEntityEncodedCall(t *testing.T) {
	// Upstream sometimes entity-encodes the quotes inside onclick.
	content := `<button class="cw-cta-btn" onclick="startPracticeSession(&#39;CS101&#39;, &#39;Heaps&#39;, &#39;s-9&#39;)">Start</button>`
	got := Parse(content)
	if len(got) != 1 || got[0].Type != SegmentButton {
		t.Fatalf("expected button segment, got %+v", got)
	}
	if got[0].Course != "CS101" || got[0].Topic != "Heaps" || got[0].SessionID != "s-9" {
		t.Errorf("params = %+v", got[0])
	}
}

func TestParseEmptyLabelDefaults(t *testing.T) {
	content := `<button class="cw-cta-btn" onclick="startPracticeSession('CS1','X')"></button>`
	got := Parse(content)
	if len(got) != 1 || got[0].Type != SegmentButton {
		t.Fatalf("expected button segment, got %+v", got)
	}
	if got[0].Label != defaultButtonLabel {
		t.Errorf("label = %q, want default %q", got[0].Label, defaultButtonLabel)
	}
}

func TestParseIdempotentOnDecodedText(t *testing.T) {
	// A single-pass replacer must not re-decode already decoded output.
	in := "5 &amp;lt; 6"
	first := Parse(in)[0].Content
	second := Parse(first)[0].Content
	if first != "5 &lt; 6" {
		t.Errorf("first pass = %q", first)
	}
	if second != "5 < 6" {
		// Feeding decoded output back in decodes one more layer; what
		// matters is that a single call never double-decodes.
		t.Errorf("second pass = %q", second)
	}
}

func TestParseMultipleButtons(t *testing.T) {
	content := `Pick one: <button class="cw-cta-btn" onclick="startPracticeSession('A','Easy')">Easy</button> or ` +
		`<button class="cw-cta-btn" onclick="startPracticeSession('A','Hard')">Hard</button>`
	got := Parse(content)

	var buttons []Segment
	for _, seg := range got {
		if seg.Type == SegmentButton {
			buttons = append(buttons, seg)
		}
	}
	if len(buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d: %+v", len(buttons), got)
	}
	if buttons[0].Topic != "Easy" || buttons[1].Topic != "Hard" {
		t.Errorf("button topics = %q, %q", buttons[0].Topic, buttons[1].Topic)
	}
}
