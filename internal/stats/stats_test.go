package stats

import (
	"math"
	"reflect"
	"testing"
	"time"

	"cc_usage_mon/internal/ingest"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 6, day, hour, minute, 0, 0, time.UTC)
}

func conv(id, project string, start time.Time, cost float64, tokens int64, messages int, durationMin float64) ingest.Conversation {
	return ingest.Conversation{
		ID:           id,
		Project:      project,
		StartTime:    start,
		EndTime:      start.Add(time.Duration(durationMin) * time.Minute),
		Duration:     durationMin,
		TotalCost:    cost,
		TotalTokens:  ingest.UsageTokens{Total: tokens, Output: tokens},
		MessageCount: messages,
		Tools:        map[string]*ingest.ToolUsageRecord{},
		Models:       map[string]*ingest.ModelUsageRecord{},
	}
}

func sampleSet() []ingest.Conversation {
	c1 := conv("c1", "alpha", at(1, 10, 0), 0.30, 3000, 3, 10)
	c1.Tools["Bash"] = &ingest.ToolUsageRecord{Count: 5, TotalCost: 0.10, ErrorCount: 1}
	c1.Models["test-model"] = &ingest.ModelUsageRecord{Count: 3, Cost: 0.30, Tokens: ingest.UsageTokens{Total: 3000}}
	c1.Commands = []string{"compact", "compact", "review"}
	c1.Errors = []ingest.ToolError{{ToolName: "Bash"}}
	c1.BurnRates = []ingest.BurnRateSample{
		{Timestamp: at(1, 10, 2), Tokens: 2000, Rate: 1000, Cost: 0.02},
		{Timestamp: at(1, 10, 4), Tokens: 1000, Rate: 500, Cost: 0.01},
	}

	c2 := conv("c2", "alpha", at(1, 14, 0), 0.20, 2000, 2, 5)
	c2.Tools["Edit"] = &ingest.ToolUsageRecord{Count: 2, TotalCost: 0.05}
	c2.Models["test-model"] = &ingest.ModelUsageRecord{Count: 2, Cost: 0.20, Tokens: ingest.UsageTokens{Total: 2000}}
	c2.Commands = []string{"compact"}

	c3 := conv("c3", "beta", at(2, 10, 0), 0.50, 5000, 4, 20)
	c3.Tools["Bash"] = &ingest.ToolUsageRecord{Count: 1, TotalCost: 0.01}
	c3.Models["other-model"] = &ingest.ModelUsageRecord{Count: 4, Cost: 0.50, Tokens: ingest.UsageTokens{Total: 5000}}
	c3.BurnRates = []ingest.BurnRateSample{
		{Timestamp: at(2, 10, 5), Tokens: 5000, Rate: 2500, Cost: 0.05},
	}

	// Free conversation: excluded from Totals but visible elsewhere
	c4 := conv("c4", "beta", at(2, 10, 30), 0, 0, 0, 0)

	return []ingest.Conversation{c1, c2, c3, c4}
}

func TestTotals(t *testing.T) {
	totals := Totals(sampleSet())

	if totals.Conversations != 3 {
		t.Errorf("Conversations = %d, want 3 (zero-cost excluded)", totals.Conversations)
	}
	if math.Abs(totals.TotalCost-1.00) > 1e-9 {
		t.Errorf("TotalCost = %v, want 1.00", totals.TotalCost)
	}
	if totals.TotalTokens.Total != 10000 {
		t.Errorf("TotalTokens.Total = %d, want 10000", totals.TotalTokens.Total)
	}
	if totals.TotalMessages != 9 {
		t.Errorf("TotalMessages = %d, want 9", totals.TotalMessages)
	}
	if math.Abs(totals.AvgCost-1.00/3) > 1e-9 {
		t.Errorf("AvgCost = %v, want 1/3", totals.AvgCost)
	}
}

func TestTotalsEmptySetIsZeroSafe(t *testing.T) {
	totals := Totals(nil)
	if totals.AvgCost != 0 || totals.AvgTokens != 0 || totals.AvgDuration != 0 {
		t.Errorf("averages over an empty set should be zero, got %+v", totals)
	}
}

func TestDaily(t *testing.T) {
	daily := Daily(sampleSet())

	if len(daily) != 2 {
		t.Fatalf("len(daily) = %d, want 2", len(daily))
	}
	if daily[0].Date != "2025-06-01" || daily[1].Date != "2025-06-02" {
		t.Errorf("dates = %s, %s; want ascending 2025-06-01, 2025-06-02", daily[0].Date, daily[1].Date)
	}
	if daily[0].Conversations != 2 {
		t.Errorf("day one Conversations = %d, want 2", daily[0].Conversations)
	}
	if math.Abs(daily[1].TotalCost-0.50) > 1e-9 {
		t.Errorf("day two TotalCost = %v, want 0.50", daily[1].TotalCost)
	}
}

func TestHourlyAlways24Buckets(t *testing.T) {
	for _, convs := range [][]ingest.Conversation{nil, sampleSet()} {
		hourly := Hourly(convs)
		if len(hourly) != 24 {
			t.Fatalf("len(hourly) = %d, want 24", len(hourly))
		}
		for h, b := range hourly {
			if b.Hour != h {
				t.Errorf("bucket %d has Hour = %d", h, b.Hour)
			}
			if b.TotalCost < 0 {
				t.Errorf("hour %d has negative cost", h)
			}
		}
	}

	hourly := Hourly(sampleSet())
	if hourly[10].Conversations != 3 {
		t.Errorf("hour 10 Conversations = %d, want 3", hourly[10].Conversations)
	}
	if hourly[14].Conversations != 1 {
		t.Errorf("hour 14 Conversations = %d, want 1", hourly[14].Conversations)
	}
	if hourly[3].Conversations != 0 {
		t.Errorf("hour 3 Conversations = %d, want 0", hourly[3].Conversations)
	}
}

func TestTools(t *testing.T) {
	tools := Tools(sampleSet())

	if len(tools) != 2 {
		t.Fatalf("len(tools) = %d, want 2", len(tools))
	}
	// Bash: 5+1 invocations across two conversations
	if tools[0].Name != "Bash" || tools[0].Count != 6 {
		t.Errorf("tools[0] = %+v, want Bash with Count 6", tools[0])
	}
	if tools[0].Conversations != 2 {
		t.Errorf("Bash Conversations = %d, want 2", tools[0].Conversations)
	}
	if tools[0].ErrorCount != 1 {
		t.Errorf("Bash ErrorCount = %d, want 1", tools[0].ErrorCount)
	}
	if math.Abs(tools[0].TotalCost-0.11) > 1e-9 {
		t.Errorf("Bash TotalCost = %v, want 0.11", tools[0].TotalCost)
	}
}

func TestModels(t *testing.T) {
	models := Models(sampleSet())

	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}
	// Ranked by cost descending: other-model 0.50 over test-model 0.50...
	// test-model totals 0.30+0.20 = 0.50 too, tie broken by name.
	if models[0].Model != "other-model" {
		t.Errorf("models[0] = %q, want other-model (tie broken by name)", models[0].Model)
	}
	if models[1].Model != "test-model" || models[1].Count != 5 {
		t.Errorf("models[1] = %+v, want test-model with Count 5", models[1])
	}
	if models[1].Conversations != 2 {
		t.Errorf("test-model Conversations = %d, want 2", models[1].Conversations)
	}
}

func TestCommands(t *testing.T) {
	commands := Commands(sampleSet())

	if len(commands) != 2 {
		t.Fatalf("len(commands) = %d, want 2", len(commands))
	}
	if commands[0].Command != "compact" || commands[0].Count != 3 {
		t.Errorf("commands[0] = %+v, want compact x3", commands[0])
	}
	if commands[0].Conversations != 2 {
		t.Errorf("compact Conversations = %d, want 2 distinct", commands[0].Conversations)
	}
	if commands[1].Command != "review" || commands[1].Conversations != 1 {
		t.Errorf("commands[1] = %+v, want review x1", commands[1])
	}
}

func TestErrors(t *testing.T) {
	errs := Errors(sampleSet())

	if errs.TotalErrors != 1 {
		t.Errorf("TotalErrors = %d, want 1", errs.TotalErrors)
	}
	if errs.ConversationsHit != 1 {
		t.Errorf("ConversationsHit = %d, want 1", errs.ConversationsHit)
	}
	if math.Abs(errs.ErrorRate-0.25) > 1e-9 {
		t.Errorf("ErrorRate = %v, want 0.25", errs.ErrorRate)
	}
	if errs.ByTool["Bash"] != 1 {
		t.Errorf("ByTool[Bash] = %d, want 1", errs.ByTool["Bash"])
	}
}

func TestSessions(t *testing.T) {
	s := Sessions(sampleSet())

	if s.Counted != 3 {
		t.Errorf("Counted = %d, want 3", s.Counted)
	}
	if s.LongestDuration != 20 {
		t.Errorf("LongestDuration = %v, want 20", s.LongestDuration)
	}
	if s.ShortestDuration != 5 {
		t.Errorf("ShortestDuration = %v, want 5", s.ShortestDuration)
	}
	if math.Abs(s.AvgDuration-35.0/3) > 1e-9 {
		t.Errorf("AvgDuration = %v, want 35/3", s.AvgDuration)
	}
}

func TestIdleGaps(t *testing.T) {
	quiet := conv("quiet", "p", at(1, 9, 0), 0.01, 10, 2, 60)
	quiet.MessageTimes = []time.Time{at(1, 9, 0), at(1, 9, 2), at(1, 9, 4)}

	idle := conv("idle", "p", at(1, 10, 0), 0.01, 10, 2, 60)
	idle.MessageTimes = []time.Time{at(1, 10, 0), at(1, 10, 30), at(1, 10, 32), at(1, 10, 45)}

	s := Sessions([]ingest.Conversation{quiet, idle})

	if len(s.IdleTop) != 1 {
		t.Fatalf("len(IdleTop) = %d, want 1 (gaps under 5 minutes don't count)", len(s.IdleTop))
	}
	got := s.IdleTop[0]
	if got.ConversationID != "idle" {
		t.Errorf("IdleTop[0].ConversationID = %q, want idle", got.ConversationID)
	}
	if got.MaxGapMinutes != 30 {
		t.Errorf("MaxGapMinutes = %v, want 30", got.MaxGapMinutes)
	}
	if got.GapCount != 2 {
		t.Errorf("GapCount = %d, want 2 (30min and 13min gaps)", got.GapCount)
	}
}

func TestIdleGapsTopTen(t *testing.T) {
	var convs []ingest.Conversation
	for i := 0; i < 15; i++ {
		c := conv("c", "p", at(1, 9, 0), 0.01, 10, 2, 60)
		c.ID = string(rune('a' + i))
		gap := time.Duration(10+i) * time.Minute
		c.MessageTimes = []time.Time{at(1, 9, 0), at(1, 9, 0).Add(gap)}
		convs = append(convs, c)
	}

	s := Sessions(convs)
	if len(s.IdleTop) != 10 {
		t.Fatalf("len(IdleTop) = %d, want capped at 10", len(s.IdleTop))
	}
	// Largest gap first
	if s.IdleTop[0].MaxGapMinutes != 24 {
		t.Errorf("IdleTop[0].MaxGapMinutes = %v, want 24", s.IdleTop[0].MaxGapMinutes)
	}
	for i := 1; i < len(s.IdleTop); i++ {
		if s.IdleTop[i].MaxGapMinutes > s.IdleTop[i-1].MaxGapMinutes {
			t.Fatal("IdleTop should be sorted by gap descending")
		}
	}
}

func TestBurn(t *testing.T) {
	burn := Burn(sampleSet())

	if burn.SampleCount != 3 {
		t.Fatalf("SampleCount = %d, want 3", burn.SampleCount)
	}
	if burn.MaxRate != 2500 {
		t.Errorf("MaxRate = %v, want 2500", burn.MaxRate)
	}
	wantAvg := (1000.0 + 500.0 + 2500.0) / 3
	if math.Abs(burn.AvgRate-wantAvg) > 1e-9 {
		t.Errorf("AvgRate = %v, want %v", burn.AvgRate, wantAvg)
	}
	if burn.TopSamples[0].ConversationID != "c3" || burn.TopSamples[0].Rate != 2500 {
		t.Errorf("TopSamples[0] = %+v, want c3 at 2500", burn.TopSamples[0])
	}
}

func TestBurnTopTwenty(t *testing.T) {
	c := conv("c", "p", at(1, 9, 0), 0.01, 10, 2, 60)
	for i := 0; i < 30; i++ {
		c.BurnRates = append(c.BurnRates, ingest.BurnRateSample{Rate: float64(i)})
	}

	burn := Burn([]ingest.Conversation{c})
	if len(burn.TopSamples) != 20 {
		t.Errorf("len(TopSamples) = %d, want capped at 20", len(burn.TopSamples))
	}
	if burn.TopSamples[0].Rate != 29 {
		t.Errorf("TopSamples[0].Rate = %v, want 29", burn.TopSamples[0].Rate)
	}
}

func TestProjects(t *testing.T) {
	projects := Projects(sampleSet())

	if len(projects) != 2 {
		t.Fatalf("len(projects) = %d, want 2", len(projects))
	}
	// alpha 0.50 vs beta 0.50: tie broken by name
	if projects[0].Name != "alpha" || projects[1].Name != "beta" {
		t.Errorf("project order = %s, %s", projects[0].Name, projects[1].Name)
	}
	if projects[0].Conversations != 2 {
		t.Errorf("alpha Conversations = %d, want 2", projects[0].Conversations)
	}
	if projects[1].TotalTokens != 5000 {
		t.Errorf("beta TotalTokens = %d, want 5000", projects[1].TotalTokens)
	}
	// Nested breakdowns only cover the project's own conversations
	if len(projects[0].Tools) != 2 {
		t.Errorf("alpha nested tools = %d, want 2 (Bash, Edit)", len(projects[0].Tools))
	}
	if len(projects[1].Models) != 1 || projects[1].Models[0].Model != "other-model" {
		t.Errorf("beta nested models = %+v, want only other-model", projects[1].Models)
	}
}

func TestReportOrderInsensitive(t *testing.T) {
	convs := sampleSet()
	reversed := make([]ingest.Conversation, len(convs))
	for i, c := range convs {
		reversed[len(convs)-1-i] = c
	}

	a := BuildReport(convs)
	b := BuildReport(reversed)

	if !reflect.DeepEqual(a, b) {
		t.Error("report should not depend on conversation discovery order")
	}
}

func TestReportIdempotent(t *testing.T) {
	convs := sampleSet()
	a := BuildReport(convs)
	b := BuildReport(convs)

	if !reflect.DeepEqual(a, b) {
		t.Error("re-aggregating an unchanged set should be bit-identical")
	}
}
