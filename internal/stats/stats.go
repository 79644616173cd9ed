// Package stats reduces a set of conversations into cross-cutting
// views: time buckets, tool and model usage, error rates, session
// shape, burn rate, and per-project totals. Every reduction is a pure
// function over the conversation set; totals never depend on input
// order, only tie-break ordering of rankings may.
package stats

import (
	"sort"

	"cc_usage_mon/internal/ingest"
)

// TotalStats sums cost, tokens, messages, and duration over
// conversations that incurred any cost, with zero-safe averages.
type TotalStats struct {
	Conversations int
	TotalCost     float64
	TotalTokens   ingest.UsageTokens
	TotalMessages int
	TotalDuration float64 // minutes

	AvgCost     float64
	AvgTokens   float64
	AvgMessages float64
	AvgDuration float64
}

// DailyBucket aggregates conversations that started on one calendar day.
type DailyBucket struct {
	Date          string // 2006-01-02
	Conversations int
	TotalCost     float64
	TotalTokens   int64
	Messages      int
}

// HourlyBucket aggregates conversations that started in one hour of the
// day. All 24 buckets always exist.
type HourlyBucket struct {
	Hour          int
	Conversations int
	TotalCost     float64
	TotalTokens   int64
	Messages      int
}

// ToolUsage sums one tool's use across all conversations.
type ToolUsage struct {
	Name          string
	Count         int
	TotalCost     float64
	ErrorCount    int
	Conversations int
}

// ModelUsage sums one model's use across all conversations.
type ModelUsage struct {
	Model         string
	Count         int
	Cost          float64
	Tokens        ingest.UsageTokens
	Conversations int
}

// CommandUsage counts one slash command's invocations and the distinct
// conversations that used it.
type CommandUsage struct {
	Command       string
	Count         int
	Conversations int
}

// ErrorStats summarizes tool-result failures.
type ErrorStats struct {
	TotalErrors      int
	ConversationsHit int
	ErrorRate        float64 // fraction of conversations with at least one error
	ByTool           map[string]int
}

// IdleConversation is a conversation with at least one inter-message
// gap over the idle threshold, ranked by its largest gap.
type IdleConversation struct {
	ConversationID string
	Title          string
	MaxGapMinutes  float64
	GapCount       int
}

// SessionStats summarizes conversation durations and idle gaps.
type SessionStats struct {
	Counted          int // conversations with duration > 0
	AvgDuration      float64
	LongestDuration  float64
	ShortestDuration float64
	IdleTop          []IdleConversation
}

// ConversationSample is a burn-rate sample tagged with its origin.
type ConversationSample struct {
	ConversationID string
	ingest.BurnRateSample
}

// TokenBurnStats summarizes burn-rate samples across all conversations.
type TokenBurnStats struct {
	SampleCount int
	AvgRate     float64
	MaxRate     float64
	TopSamples  []ConversationSample
}

// ProjectStats sums everything for one project, with nested tool and
// model breakdowns.
type ProjectStats struct {
	Name          string
	Conversations int
	TotalCost     float64
	TotalTokens   int64
	TotalDuration float64
	Tools         []ToolUsage
	Models        []ModelUsage
}

// Report bundles every view for the rendering layer.
type Report struct {
	Totals   TotalStats
	Daily    []DailyBucket
	Hourly   []HourlyBucket
	Tools    []ToolUsage
	Models   []ModelUsage
	Commands []CommandUsage
	Errors   ErrorStats
	Sessions SessionStats
	Burn     TokenBurnStats
	Projects []ProjectStats
}

const (
	idleGapThresholdMinutes = 5.0
	idleTopN                = 10
	burnTopN                = 20
)

// BuildReport runs every reduction over the conversation set.
func BuildReport(convs []ingest.Conversation) Report {
	return Report{
		Totals:   Totals(convs),
		Daily:    Daily(convs),
		Hourly:   Hourly(convs),
		Tools:    Tools(convs),
		Models:   Models(convs),
		Commands: Commands(convs),
		Errors:   Errors(convs),
		Sessions: Sessions(convs),
		Burn:     Burn(convs),
		Projects: Projects(convs),
	}
}

// Totals sums over conversations with any cost.
func Totals(convs []ingest.Conversation) TotalStats {
	var t TotalStats
	for i := range convs {
		c := &convs[i]
		if c.TotalCost <= 0 {
			continue
		}
		t.Conversations++
		t.TotalCost += c.TotalCost
		t.TotalTokens.Add(c.TotalTokens)
		t.TotalMessages += c.MessageCount
		t.TotalDuration += c.Duration
	}

	if t.Conversations > 0 {
		n := float64(t.Conversations)
		t.AvgCost = t.TotalCost / n
		t.AvgTokens = float64(t.TotalTokens.Total) / n
		t.AvgMessages = float64(t.TotalMessages) / n
		t.AvgDuration = t.TotalDuration / n
	}

	return t
}

// Daily buckets conversations by the calendar date of their start time.
// Conversations without any timestamp are skipped.
func Daily(convs []ingest.Conversation) []DailyBucket {
	grouped := make(map[string]*DailyBucket)
	for i := range convs {
		c := &convs[i]
		if c.StartTime.IsZero() {
			continue
		}
		key := c.StartTime.Format("2006-01-02")
		b, ok := grouped[key]
		if !ok {
			b = &DailyBucket{Date: key}
			grouped[key] = b
		}
		b.Conversations++
		b.TotalCost += c.TotalCost
		b.TotalTokens += c.TotalTokens.Total
		b.Messages += c.MessageCount
	}

	buckets := make([]DailyBucket, 0, len(grouped))
	for _, b := range grouped {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	return buckets
}

// Hourly buckets conversations by the hour of day of their start time.
// Always returns exactly 24 buckets so consumers can index any hour.
func Hourly(convs []ingest.Conversation) []HourlyBucket {
	buckets := make([]HourlyBucket, 24)
	for h := range buckets {
		buckets[h].Hour = h
	}

	for i := range convs {
		c := &convs[i]
		if c.StartTime.IsZero() {
			continue
		}
		b := &buckets[c.StartTime.Hour()]
		b.Conversations++
		b.TotalCost += c.TotalCost
		b.TotalTokens += c.TotalTokens.Total
		b.Messages += c.MessageCount
	}

	return buckets
}

// Tools sums per-tool usage across conversations, sorted by count
// descending with name as tie-break.
func Tools(convs []ingest.Conversation) []ToolUsage {
	grouped := make(map[string]*ToolUsage)
	for i := range convs {
		for name, rec := range convs[i].Tools {
			u, ok := grouped[name]
			if !ok {
				u = &ToolUsage{Name: name}
				grouped[name] = u
			}
			u.Count += rec.Count
			u.TotalCost += rec.TotalCost
			u.ErrorCount += rec.ErrorCount
			u.Conversations++
		}
	}

	out := make([]ToolUsage, 0, len(grouped))
	for _, u := range grouped {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Models sums per-model usage across conversations, sorted by cost
// descending with model id as tie-break.
func Models(convs []ingest.Conversation) []ModelUsage {
	grouped := make(map[string]*ModelUsage)
	for i := range convs {
		for model, rec := range convs[i].Models {
			u, ok := grouped[model]
			if !ok {
				u = &ModelUsage{Model: model}
				grouped[model] = u
			}
			u.Count += rec.Count
			u.Cost += rec.Cost
			u.Tokens.Add(rec.Tokens)
			u.Conversations++
		}
	}

	out := make([]ModelUsage, 0, len(grouped))
	for _, u := range grouped {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost > out[j].Cost
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// Commands counts slash-command invocations and the distinct
// conversations using each, sorted by count descending.
func Commands(convs []ingest.Conversation) []CommandUsage {
	counts := make(map[string]int)
	seen := make(map[string]map[string]bool)
	for i := range convs {
		c := &convs[i]
		for _, cmd := range c.Commands {
			counts[cmd]++
			if seen[cmd] == nil {
				seen[cmd] = make(map[string]bool)
			}
			seen[cmd][c.ID] = true
		}
	}

	out := make([]CommandUsage, 0, len(counts))
	for cmd, n := range counts {
		out = append(out, CommandUsage{Command: cmd, Count: n, Conversations: len(seen[cmd])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Command < out[j].Command
	})
	return out
}

// Errors summarizes tool-result failures across all conversations.
func Errors(convs []ingest.Conversation) ErrorStats {
	stats := ErrorStats{ByTool: make(map[string]int)}
	for i := range convs {
		c := &convs[i]
		if len(c.Errors) > 0 {
			stats.ConversationsHit++
		}
		for _, e := range c.Errors {
			stats.TotalErrors++
			stats.ByTool[e.ToolName]++
		}
	}
	if len(convs) > 0 {
		stats.ErrorRate = float64(stats.ConversationsHit) / float64(len(convs))
	}
	return stats
}

// Sessions summarizes durations over conversations with duration > 0
// and ranks conversations by their largest idle gap.
func Sessions(convs []ingest.Conversation) SessionStats {
	var s SessionStats
	for i := range convs {
		c := &convs[i]
		if c.Duration <= 0 {
			continue
		}
		s.Counted++
		s.AvgDuration += c.Duration
		if c.Duration > s.LongestDuration {
			s.LongestDuration = c.Duration
		}
		if s.ShortestDuration == 0 || c.Duration < s.ShortestDuration {
			s.ShortestDuration = c.Duration
		}
	}
	if s.Counted > 0 {
		s.AvgDuration /= float64(s.Counted)
	}

	s.IdleTop = idleGaps(convs)
	return s
}

// idleGaps finds conversations whose largest inter-message gap exceeds
// the idle threshold, ranked by that gap, top N.
func idleGaps(convs []ingest.Conversation) []IdleConversation {
	var idle []IdleConversation
	for i := range convs {
		c := &convs[i]
		var maxGap float64
		var gapCount int
		for j := 1; j < len(c.MessageTimes); j++ {
			gap := c.MessageTimes[j].Sub(c.MessageTimes[j-1]).Minutes()
			if gap > idleGapThresholdMinutes {
				gapCount++
				if gap > maxGap {
					maxGap = gap
				}
			}
		}
		if gapCount > 0 {
			idle = append(idle, IdleConversation{
				ConversationID: c.ID,
				Title:          c.Title,
				MaxGapMinutes:  maxGap,
				GapCount:       gapCount,
			})
		}
	}

	sort.Slice(idle, func(i, j int) bool {
		if idle[i].MaxGapMinutes != idle[j].MaxGapMinutes {
			return idle[i].MaxGapMinutes > idle[j].MaxGapMinutes
		}
		return idle[i].ConversationID < idle[j].ConversationID
	})
	if len(idle) > idleTopN {
		idle = idle[:idleTopN]
	}
	return idle
}

// Burn flattens every conversation's burn-rate samples and reports the
// global average, maximum, and top samples by rate.
func Burn(convs []ingest.Conversation) TokenBurnStats {
	var stats TokenBurnStats
	var all []ConversationSample

	for i := range convs {
		c := &convs[i]
		for _, sample := range c.BurnRates {
			all = append(all, ConversationSample{ConversationID: c.ID, BurnRateSample: sample})
			stats.AvgRate += sample.Rate
			if sample.Rate > stats.MaxRate {
				stats.MaxRate = sample.Rate
			}
		}
	}

	stats.SampleCount = len(all)
	if stats.SampleCount > 0 {
		stats.AvgRate /= float64(stats.SampleCount)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Rate != all[j].Rate {
			return all[i].Rate > all[j].Rate
		}
		return all[i].ConversationID < all[j].ConversationID
	})
	if len(all) > burnTopN {
		all = all[:burnTopN]
	}
	stats.TopSamples = all

	return stats
}

// Projects sums everything per project, nested tool and model
// breakdowns included, ranked by total cost descending.
func Projects(convs []ingest.Conversation) []ProjectStats {
	grouped := make(map[string][]ingest.Conversation)
	for _, c := range convs {
		grouped[c.Project] = append(grouped[c.Project], c)
	}

	out := make([]ProjectStats, 0, len(grouped))
	for name, group := range grouped {
		p := ProjectStats{
			Name:   name,
			Tools:  Tools(group),
			Models: Models(group),
		}
		for i := range group {
			p.Conversations++
			p.TotalCost += group[i].TotalCost
			p.TotalTokens += group[i].TotalTokens.Total
			p.TotalDuration += group[i].Duration
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCost != out[j].TotalCost {
			return out[i].TotalCost > out[j].TotalCost
		}
		return out[i].Name < out[j].Name
	})
	return out
}
