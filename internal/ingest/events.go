// Package ingest turns raw JSONL log lines into typed events and folds
// the events of one log file into a per-conversation aggregate.
package ingest

import "time"

// EventKind identifies the role of a parsed log line.
type EventKind string

const (
	KindSummary    EventKind = "summary"
	KindUser       EventKind = "user"
	KindAssistant  EventKind = "assistant"
	KindToolUse    EventKind = "tool_use"
	KindToolResult EventKind = "tool_result"
)

// UsageTokens holds token counts for one assistant turn or an additive
// total. Total is always the sum of the other four fields.
type UsageTokens struct {
	Total      int64
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

// Add accumulates another set of counts into this one.
func (u *UsageTokens) Add(other UsageTokens) {
	u.Input += other.Input
	u.Output += other.Output
	u.CacheWrite += other.CacheWrite
	u.CacheRead += other.CacheRead
	u.Total = u.Input + u.Output + u.CacheWrite + u.CacheRead
}

// Event is one parsed log line. Events are immutable once parsed; all
// mutation happens in the accumulator.
type Event struct {
	Kind      EventKind
	Timestamp *time.Time // nil when the line carried no parseable timestamp
	SessionID string
	ParentID  string // back-reference to the triggering record, lookup only
	CWD       string

	// Assistant payload
	Model    string
	Tokens   UsageTokens
	Cost     float64
	HasUsage bool // true when the line carried a usage object and a model

	// ToolUse payload
	ToolName  string
	ToolID    string
	ToolInput string

	// ToolResult payload
	ToolUseID string
	IsError   bool

	// User payload
	Text         string
	SlashCommand string // empty unless the text started with /command

	// Summary metadata, any of which may be empty
	ThreadSummary string
	SummaryText   string
}

// ToolExecution records one tool invocation, kept so a later assistant
// turn can be attributed back to the tool that produced it.
type ToolExecution struct {
	Timestamp *time.Time
	ID        string
	ParentID  string
	Input     string
}

// ToolUsageRecord aggregates all invocations of one tool within a
// conversation.
type ToolUsageRecord struct {
	Count      int
	TotalCost  float64
	ErrorCount int
	Executions []ToolExecution
}

// ModelUsageRecord aggregates all assistant turns of one model within a
// conversation.
type ModelUsageRecord struct {
	Count  int
	Cost   float64
	Tokens UsageTokens
}

// ToolError records one failed tool result, in file order.
type ToolError struct {
	ToolName  string
	ToolUseID string
	Timestamp *time.Time
}

// BurnRateSample is the token consumption rate between two consecutive
// cost-bearing assistant turns. A sample exists only for a strictly
// positive time delta.
type BurnRateSample struct {
	Timestamp time.Time
	Tokens    int64   // tokens consumed in the interval
	Rate      float64 // tokens per minute
	Cost      float64
}

// Conversation is the aggregate of all events from one log file. It is
// built once during a single pass over the file and never mutated
// afterward.
type Conversation struct {
	ID        string // derived from the file name
	SessionID string // from the first event that carried one
	Project   string // immediate parent directory of the file
	Title     string

	TotalCost    float64
	TotalTokens  UsageTokens
	MessageCount int // cost-bearing assistant turns

	StartTime time.Time
	EndTime   time.Time
	Duration  float64 // minutes, zero unless two distinct timestamps were seen

	Tools  map[string]*ToolUsageRecord
	Models map[string]*ModelUsageRecord

	Commands []string    // slash commands in file order
	Errors   []ToolError // tool-result errors in file order

	BurnRates []BurnRateSample

	// MessageTimes holds the sorted timestamps of user and assistant
	// events, retained for idle-gap analysis.
	MessageTimes []time.Time

	ParseErrors int // malformed lines encountered in this file
}
