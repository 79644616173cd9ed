package ingest

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const titleMaxLen = 100

// Accumulator folds the event stream of one log file into a
// Conversation. Events arrive in file order, which is not necessarily
// timestamp order; min/max bookkeeping handles out-of-order stamps.
type Accumulator struct {
	conv Conversation

	// Burn-rate cursor: timestamp of the previous cost-bearing
	// assistant turn.
	lastCostTime *time.Time

	// Title candidates, resolved by priority in Finish.
	threadSummary string
	summaryMeta   string
	summaryText   string
	firstUserMsg  string
}

// NewAccumulator starts an empty conversation for one log file.
func NewAccumulator(id, project string) *Accumulator {
	return &Accumulator{
		conv: Conversation{
			ID:      id,
			Project: project,
			Tools:   make(map[string]*ToolUsageRecord),
			Models:  make(map[string]*ModelUsageRecord),
		},
	}
}

// CountParseError records one malformed line.
func (a *Accumulator) CountParseError() {
	a.conv.ParseErrors++
}

// Add folds one event into the conversation.
func (a *Accumulator) Add(ev *Event) {
	if a.conv.SessionID == "" && ev.SessionID != "" {
		a.conv.SessionID = ev.SessionID
	}

	if ev.Timestamp != nil {
		a.observeTimestamp(*ev.Timestamp)
	}

	if ev.ThreadSummary != "" && a.threadSummary == "" {
		a.threadSummary = ev.ThreadSummary
	}
	if ev.SummaryText != "" {
		switch ev.Kind {
		case KindSummary:
			if a.summaryText == "" {
				a.summaryText = ev.SummaryText
			}
		default:
			if a.summaryMeta == "" {
				a.summaryMeta = ev.SummaryText
			}
		}
	}

	switch ev.Kind {
	case KindUser:
		a.addUser(ev)
	case KindAssistant:
		a.addAssistant(ev)
	case KindToolUse:
		a.addToolUse(ev)
	case KindToolResult:
		a.addToolResult(ev)
	}
}

func (a *Accumulator) addUser(ev *Event) {
	if ev.Timestamp != nil {
		a.conv.MessageTimes = append(a.conv.MessageTimes, *ev.Timestamp)
	}
	if a.firstUserMsg == "" && strings.TrimSpace(ev.Text) != "" {
		a.firstUserMsg = ev.Text
	}
	if ev.SlashCommand != "" {
		a.conv.Commands = append(a.conv.Commands, ev.SlashCommand)
	}
}

func (a *Accumulator) addAssistant(ev *Event) {
	if ev.Timestamp != nil {
		a.conv.MessageTimes = append(a.conv.MessageTimes, *ev.Timestamp)
	}
	if !ev.HasUsage {
		return
	}

	a.conv.TotalCost += ev.Cost
	a.conv.TotalTokens.Add(ev.Tokens)
	a.conv.MessageCount++

	m, ok := a.conv.Models[ev.Model]
	if !ok {
		m = &ModelUsageRecord{}
		a.conv.Models[ev.Model] = m
	}
	m.Count++
	m.Cost += ev.Cost
	m.Tokens.Add(ev.Tokens)

	a.attributeToolCost(ev)
	a.sampleBurnRate(ev)
}

// attributeToolCost adds an assistant turn's cost to the tool invocation
// it answers, matched by parent-id linkage. First match wins; with
// interleaved tool calls this can pick the wrong invocation, a known and
// accepted imprecision. No match is an explicit no-op.
func (a *Accumulator) attributeToolCost(ev *Event) {
	if ev.ParentID == "" {
		return
	}

	for _, rec := range a.conv.Tools {
		for _, exec := range rec.Executions {
			if exec.ID == ev.ParentID || exec.ParentID == ev.ParentID {
				rec.TotalCost += ev.Cost
				return
			}
		}
	}
	// No matching execution: the invocation was never recorded. The
	// cost stays on the conversation total only.
}

// sampleBurnRate emits a sample between this and the previous
// cost-bearing turn. Zero or negative deltas (clock skew, duplicate
// stamps) produce no sample.
func (a *Accumulator) sampleBurnRate(ev *Event) {
	if ev.Timestamp == nil {
		return
	}

	if a.lastCostTime != nil {
		delta := ev.Timestamp.Sub(*a.lastCostTime)
		if delta > 0 {
			minutes := delta.Minutes()
			a.conv.BurnRates = append(a.conv.BurnRates, BurnRateSample{
				Timestamp: *ev.Timestamp,
				Tokens:    ev.Tokens.Total,
				Rate:      float64(ev.Tokens.Total) / minutes,
				Cost:      ev.Cost,
			})
		}
	}

	t := *ev.Timestamp
	a.lastCostTime = &t
}

func (a *Accumulator) addToolUse(ev *Event) {
	name := ev.ToolName
	if name == "" {
		name = "unknown"
	}

	rec, ok := a.conv.Tools[name]
	if !ok {
		rec = &ToolUsageRecord{}
		a.conv.Tools[name] = rec
	}
	rec.Count++
	rec.Executions = append(rec.Executions, ToolExecution{
		Timestamp: ev.Timestamp,
		ID:        ev.ToolID,
		ParentID:  ev.ParentID,
		Input:     ev.ToolInput,
	})
}

func (a *Accumulator) addToolResult(ev *Event) {
	if !ev.IsError {
		return
	}

	name := a.toolNameForUseID(ev.ToolUseID)
	if rec, ok := a.conv.Tools[name]; ok {
		rec.ErrorCount++
	}
	a.conv.Errors = append(a.conv.Errors, ToolError{
		ToolName:  name,
		ToolUseID: ev.ToolUseID,
		Timestamp: ev.Timestamp,
	})
}

// toolNameForUseID resolves a tool_use_id back to the tool that issued
// it, or "unknown" when the invocation was never recorded.
func (a *Accumulator) toolNameForUseID(useID string) string {
	if useID == "" {
		return "unknown"
	}
	for name, rec := range a.conv.Tools {
		for _, exec := range rec.Executions {
			if exec.ID == useID {
				return name
			}
		}
	}
	return "unknown"
}

func (a *Accumulator) observeTimestamp(t time.Time) {
	if a.conv.StartTime.IsZero() || t.Before(a.conv.StartTime) {
		a.conv.StartTime = t
	}
	if a.conv.EndTime.IsZero() || t.After(a.conv.EndTime) {
		a.conv.EndTime = t
	}
}

// Finish resolves the title and duration and returns the completed
// conversation as a value. The accumulator must not be reused.
func (a *Accumulator) Finish() Conversation {
	a.conv.Title = a.resolveTitle()

	if !a.conv.StartTime.IsZero() && a.conv.EndTime.After(a.conv.StartTime) {
		a.conv.Duration = a.conv.EndTime.Sub(a.conv.StartTime).Minutes()
	}

	sort.Slice(a.conv.MessageTimes, func(i, j int) bool {
		return a.conv.MessageTimes[i].Before(a.conv.MessageTimes[j])
	})

	return a.conv
}

// resolveTitle picks the best available title. Priority: thread-summary
// metadata, summary-field metadata, summary-event text, first user
// message, then a literal fallback.
func (a *Accumulator) resolveTitle() string {
	for _, candidate := range []string{a.threadSummary, a.summaryMeta, a.summaryText, a.firstUserMsg} {
		if strings.TrimSpace(candidate) != "" {
			return cleanTitle(candidate)
		}
	}
	return "Untitled"
}

// cleanTitle flattens newlines to spaces and truncates to the title
// cap on a rune boundary.
func cleanTitle(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > titleMaxLen {
		s = string([]rune(s)[:titleMaxLen])
	}
	return s
}
