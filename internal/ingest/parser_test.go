package ingest

import (
	"testing"

	"cc_usage_mon/internal/pricing"
)

func testTable() *pricing.Table {
	return &pricing.Table{
		Default: pricing.Rates{Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
		Models: map[string]pricing.Rates{
			"test-model": {Input: 1.00, Output: 2.00, CacheWrite: 4.00, CacheRead: 8.00},
		},
	}
}

func TestParseLineMalformedJSON(t *testing.T) {
	p := NewParser(testTable())

	if _, err := p.ParseLine([]byte("not json at all")); err == nil {
		t.Error("ParseLine should fail on invalid JSON")
	}
}

func TestParseLineUnknownType(t *testing.T) {
	p := NewParser(testTable())

	tests := []struct {
		name string
		line string
	}{
		{"missing type", `{"timestamp":"2025-06-01T10:00:00Z"}`},
		{"unrecognized type", `{"type":"system"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.ParseLine([]byte(tt.line)); err == nil {
				t.Errorf("ParseLine(%s) should fail", tt.line)
			}
		})
	}
}

func TestParseLineAssistantUsage(t *testing.T) {
	p := NewParser(testTable())

	line := `{"type":"assistant","timestamp":"2025-06-01T10:00:00Z","sessionId":"s1",
		"message":{"model":"test-model","usage":{"input_tokens":1000,"output_tokens":500,
		"cache_creation_input_tokens":200,"cache_read_input_tokens":300}}}`

	ev, err := p.ParseLine([]byte(line))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}

	if !ev.HasUsage {
		t.Fatal("expected HasUsage for assistant with usage and model")
	}
	if ev.Tokens.Total != 2000 {
		t.Errorf("Tokens.Total = %d, want 2000", ev.Tokens.Total)
	}
	if ev.Tokens.Total != ev.Tokens.Input+ev.Tokens.Output+ev.Tokens.CacheWrite+ev.Tokens.CacheRead {
		t.Error("Tokens.Total is not the sum of its components")
	}

	// 1000*1 + 500*2 + 200*4 + 300*8 = 5200 micro-dollars per million
	want := 5200.0 / 1_000_000
	if ev.Cost != want {
		t.Errorf("Cost = %v, want %v", ev.Cost, want)
	}
	if ev.SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", ev.SessionID)
	}
	if ev.Timestamp == nil {
		t.Error("expected a parsed timestamp")
	}
}

func TestParseLineAssistantWithoutUsage(t *testing.T) {
	p := NewParser(testTable())

	tests := []struct {
		name string
		line string
	}{
		{"no message", `{"type":"assistant"}`},
		{"no usage", `{"type":"assistant","message":{"model":"test-model"}}`},
		{"no model", `{"type":"assistant","message":{"usage":{"input_tokens":10}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := p.ParseLine([]byte(tt.line))
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if ev.HasUsage {
				t.Error("HasUsage should be false")
			}
			if ev.Cost != 0 {
				t.Errorf("Cost = %v, want 0", ev.Cost)
			}
		})
	}
}

func TestParseLineUnparseableTimestamp(t *testing.T) {
	p := NewParser(testTable())

	ev, err := p.ParseLine([]byte(`{"type":"user","timestamp":"yesterday","text":"hi"}`))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if ev.Timestamp != nil {
		t.Error("unparseable timestamp should yield a nil Timestamp, not a failure")
	}
}

func TestParseLineToolUse(t *testing.T) {
	p := NewParser(testTable())

	tests := []struct {
		name     string
		line     string
		wantName string
	}{
		{"named tool", `{"type":"tool_use","tool_use":{"id":"t1","name":"Bash","input":{"command":"ls"}}}`, "Bash"},
		{"missing name", `{"type":"tool_use","tool_use":{"id":"t2"}}`, "unknown"},
		{"missing tool_use object", `{"type":"tool_use"}`, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := p.ParseLine([]byte(tt.line))
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if ev.ToolName != tt.wantName {
				t.Errorf("ToolName = %q, want %q", ev.ToolName, tt.wantName)
			}
		})
	}
}

func TestParseLineToolResult(t *testing.T) {
	p := NewParser(testTable())

	ev, err := p.ParseLine([]byte(`{"type":"tool_result","tool_use_id":"t1","is_error":true}`))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if ev.ToolUseID != "t1" {
		t.Errorf("ToolUseID = %q, want t1", ev.ToolUseID)
	}
	if !ev.IsError {
		t.Error("IsError should be read verbatim")
	}
}

func TestParseLineUserContentForms(t *testing.T) {
	p := NewParser(testTable())

	tests := []struct {
		name     string
		line     string
		wantText string
	}{
		{"text field", `{"type":"user","text":"hello"}`, "hello"},
		{"string content", `{"type":"user","content":"from content"}`, "from content"},
		{"block content", `{"type":"user","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`, "a\nb"},
		{"text wins over content", `{"type":"user","text":"t","content":"c"}`, "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := p.ParseLine([]byte(tt.line))
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if ev.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", ev.Text, tt.wantText)
			}
		})
	}
}

func TestSlashCommand(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/compact", "compact"},
		{"/compact now please", "compact"},
		{"  /review file.go", "review"},
		{"/model\topus", "model"},
		{"not a command", ""},
		{"use /compact later", ""},
		{"/", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := slashCommand(tt.text); got != tt.want {
				t.Errorf("slashCommand(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseLineSummaryMetadata(t *testing.T) {
	p := NewParser(testTable())

	ev, err := p.ParseLine([]byte(`{"type":"summary","metadata":{"thread_summary":"ts","summary":"s"}}`))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if ev.ThreadSummary != "ts" {
		t.Errorf("ThreadSummary = %q, want ts", ev.ThreadSummary)
	}
	if ev.SummaryText != "s" {
		t.Errorf("SummaryText = %q, want s", ev.SummaryText)
	}

	// Summary line without metadata falls back to its text content
	ev, err = p.ParseLine([]byte(`{"type":"summary","content":"running summary"}`))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if ev.SummaryText != "running summary" {
		t.Errorf("SummaryText = %q, want running summary", ev.SummaryText)
	}
}

func TestParseLineIsDeterministic(t *testing.T) {
	p := NewParser(testTable())
	line := []byte(`{"type":"assistant","timestamp":"2025-06-01T10:00:00Z",
		"message":{"model":"test-model","usage":{"input_tokens":42,"output_tokens":7}}}`)

	a, err := p.ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	b, err := p.ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}

	if a.Cost != b.Cost || a.Tokens != b.Tokens || !a.Timestamp.Equal(*b.Timestamp) {
		t.Error("identical input should yield an identical event")
	}
}
