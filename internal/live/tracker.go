package live

import (
	"sort"
	"time"

	"cc_usage_mon/internal/ingest"
)

// ActivityEntry is one row of a session's recent-activity history.
type ActivityEntry struct {
	Timestamp time.Time
	Kind      ingest.EventKind
	Detail    string
}

// Snapshot is a copied view of one session's state, safe to hand to
// other goroutines.
type Snapshot struct {
	SessionID    string
	StartTime    time.Time
	LastUpdate   time.Time
	TotalCost    float64
	TotalTokens  ingest.UsageTokens
	MessageCount int
	BurnRates    []ingest.BurnRateSample
	Recent       []ActivityEntry
}

// Update is emitted after each applied event.
type Update struct {
	SessionID   string
	Snapshot    Snapshot
	LatestEvent *ingest.Event
}

type session struct {
	id           string
	startTime    time.Time
	lastUpdate   time.Time
	totalCost    float64
	totalTokens  ingest.UsageTokens
	messageCount int
	lastCostTime *time.Time
	burn         *Ring[ingest.BurnRateSample]
	recent       *Ring[ActivityEntry]
}

// Tracker accumulates per-session state from live events. It is not
// safe for concurrent use; all mutation must come from a single
// goroutine (the watcher loop).
type Tracker struct {
	sessions  map[string]*session
	activeID  string
	burnCap   int
	recentCap int
}

// NewTracker creates a tracker whose per-session burn-rate and
// recent-activity histories are bounded to the given capacities.
func NewTracker(burnCap, recentCap int) *Tracker {
	return &Tracker{
		sessions:  make(map[string]*session),
		burnCap:   burnCap,
		recentCap: recentCap,
	}
}

// Apply folds one event into the tracker. Events without a session id
// do not qualify and are ignored. The returned Update carries a
// snapshot of the affected session.
func (t *Tracker) Apply(ev *ingest.Event) (Update, bool) {
	if ev == nil || ev.SessionID == "" {
		return Update{}, false
	}

	now := time.Now()
	when := now
	if ev.Timestamp != nil {
		when = *ev.Timestamp
	}

	s, ok := t.sessions[ev.SessionID]
	if !ok {
		s = &session{
			id:        ev.SessionID,
			startTime: when,
			burn:      NewRing[ingest.BurnRateSample](t.burnCap),
			recent:    NewRing[ActivityEntry](t.recentCap),
		}
		t.sessions[ev.SessionID] = s
	}

	s.lastUpdate = now
	t.activeID = s.id

	if ev.Kind == ingest.KindUser || ev.Kind == ingest.KindAssistant {
		s.messageCount++
	}

	if ev.HasUsage {
		s.totalCost += ev.Cost
		s.totalTokens.Input += ev.Tokens.Input
		s.totalTokens.Output += ev.Tokens.Output
		s.totalTokens.CacheWrite += ev.Tokens.CacheWrite
		s.totalTokens.CacheRead += ev.Tokens.CacheRead
		s.totalTokens.Total += ev.Tokens.Total

		if ev.Timestamp != nil {
			if s.lastCostTime != nil {
				minutes := ev.Timestamp.Sub(*s.lastCostTime).Minutes()
				if minutes > 0 {
					s.burn.Push(ingest.BurnRateSample{
						Timestamp: *ev.Timestamp,
						Tokens:    ev.Tokens.Total,
						Rate:      float64(ev.Tokens.Total) / minutes,
						Cost:      ev.Cost,
					})
				}
			}
			ts := *ev.Timestamp
			s.lastCostTime = &ts
		}
	}

	s.recent.Push(ActivityEntry{
		Timestamp: when,
		Kind:      ev.Kind,
		Detail:    activityDetail(ev),
	})

	return Update{SessionID: s.id, Snapshot: s.snapshot(), LatestEvent: ev}, true
}

func activityDetail(ev *ingest.Event) string {
	switch ev.Kind {
	case ingest.KindToolUse:
		return ev.ToolName
	case ingest.KindAssistant:
		return ev.Model
	default:
		return ""
	}
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		SessionID:    s.id,
		StartTime:    s.startTime,
		LastUpdate:   s.lastUpdate,
		TotalCost:    s.totalCost,
		TotalTokens:  s.totalTokens,
		MessageCount: s.messageCount,
		BurnRates:    s.burn.Items(),
		Recent:       s.recent.Items(),
	}
}

// ActiveSession returns the snapshot of the most recently updated
// session, or false when nothing has been seen yet.
func (t *Tracker) ActiveSession() (Snapshot, bool) {
	s, ok := t.sessions[t.activeID]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

// Snapshots returns all sessions, most recently updated first.
func (t *Tracker) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdate.After(out[j].LastUpdate)
	})
	return out
}

// DailyCost sums the cost of every session last updated on the same
// calendar day as now.
func (t *Tracker) DailyCost(now time.Time) float64 {
	y, m, d := now.Date()
	var total float64
	for _, s := range t.sessions {
		sy, sm, sd := s.lastUpdate.Date()
		if sy == y && sm == m && sd == d {
			total += s.totalCost
		}
	}
	return total
}

// Reset discards all session state.
func (t *Tracker) Reset() {
	t.sessions = make(map[string]*session)
	t.activeID = ""
}
