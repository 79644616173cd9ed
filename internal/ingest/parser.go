package ingest

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"cc_usage_mon/internal/pricing"
)

// ErrUnknownType is returned for lines whose type field is missing or
// not one of the recognized record types.
var ErrUnknownType = errors.New("unknown record type")

// rawRecord mirrors the wire schema of one log line. Every field except
// Type is optional; absent numbers are zero and absent strings empty.
type rawRecord struct {
	Type       string          `json:"type"`
	Timestamp  string          `json:"timestamp"`
	SessionID  string          `json:"sessionId"`
	CWD        string          `json:"cwd"`
	ParentUUID string          `json:"parentUUID"`
	Message    *rawMessage     `json:"message"`
	ToolUse    *rawToolUse     `json:"tool_use"`
	ToolUseID  string          `json:"tool_use_id"`
	IsError    bool            `json:"is_error"`
	Content    json.RawMessage `json:"content"`
	Text       string          `json:"text"`
	Metadata   *rawMetadata    `json:"metadata"`
}

type rawMessage struct {
	Model string    `json:"model"`
	Usage *rawUsage `json:"usage"`
}

type rawUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

type rawToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type rawMetadata struct {
	WorkingDirectory string `json:"workingDirectory"`
	CWD              string `json:"cwd"`
	ThreadSummary    string `json:"thread_summary"`
	Summary          string `json:"summary"`
}

// Parser converts raw log lines into events, pricing assistant turns
// with its table. Parsing is stateless: the same line always yields the
// same event.
type Parser struct {
	table *pricing.Table
}

// NewParser creates a parser priced by the given table.
func NewParser(table *pricing.Table) *Parser {
	return &Parser{table: table}
}

// ParseLine parses a single log line. A malformed or unrecognized line
// returns an error; the caller counts it and moves on, one bad line
// never stops ingestion.
func (p *Parser) ParseLine(line []byte) (*Event, error) {
	var raw rawRecord
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, err
	}

	kind := EventKind(raw.Type)
	switch kind {
	case KindSummary, KindUser, KindAssistant, KindToolUse, KindToolResult:
	default:
		return nil, ErrUnknownType
	}

	ev := &Event{
		Kind:      kind,
		SessionID: raw.SessionID,
		ParentID:  raw.ParentUUID,
		CWD:       raw.CWD,
	}

	if t, err := time.Parse(time.RFC3339, raw.Timestamp); err == nil {
		ev.Timestamp = &t
	}

	if raw.Metadata != nil {
		ev.ThreadSummary = raw.Metadata.ThreadSummary
		ev.SummaryText = raw.Metadata.Summary
		if ev.CWD == "" {
			if raw.Metadata.WorkingDirectory != "" {
				ev.CWD = raw.Metadata.WorkingDirectory
			} else {
				ev.CWD = raw.Metadata.CWD
			}
		}
	}

	switch kind {
	case KindSummary:
		if ev.SummaryText == "" {
			ev.SummaryText = textFrom(&raw)
		}

	case KindUser:
		ev.Text = textFrom(&raw)
		ev.SlashCommand = slashCommand(ev.Text)

	case KindAssistant:
		if raw.Message != nil && raw.Message.Usage != nil && raw.Message.Model != "" {
			u := raw.Message.Usage
			ev.Model = raw.Message.Model
			ev.Tokens = UsageTokens{
				Input:      u.InputTokens,
				Output:     u.OutputTokens,
				CacheWrite: u.CacheCreationInputTokens,
				CacheRead:  u.CacheReadInputTokens,
			}
			ev.Tokens.Total = ev.Tokens.Input + ev.Tokens.Output + ev.Tokens.CacheWrite + ev.Tokens.CacheRead
			ev.Cost = p.table.Cost(ev.Model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens)
			ev.HasUsage = true
		}

	case KindToolUse:
		ev.ToolName = "unknown"
		if raw.ToolUse != nil {
			if raw.ToolUse.Name != "" {
				ev.ToolName = raw.ToolUse.Name
			}
			ev.ToolID = raw.ToolUse.ID
			ev.ToolInput = string(raw.ToolUse.Input)
		}

	case KindToolResult:
		ev.ToolUseID = raw.ToolUseID
		ev.IsError = raw.IsError
	}

	return ev, nil
}

// textFrom extracts readable text from a record, preferring the text
// field over the free-form content field.
func textFrom(raw *rawRecord) string {
	if raw.Text != "" {
		return raw.Text
	}
	return contentText(raw.Content)
}

// contentText extracts text from a content payload, which may be a bare
// string or an array of typed blocks.
func contentText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}

	return ""
}

// slashCommand returns the command name when text starts with a slash
// command, e.g. "/compact now" yields "compact". Only the first
// whitespace-delimited token counts.
func slashCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}

	token := text[1:]
	if i := strings.IndexFunc(token, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}); i >= 0 {
		token = token[:i]
	}

	if token == "" {
		return ""
	}
	return token
}
