// Package alert evaluates live session usage against configured
// thresholds. Evaluation is a pure function with no memory: every
// qualifying check re-fires on every call, deduplication is the
// consumer's problem.
package alert

import "fmt"

// Alert types.
const (
	TypeDailyCost     = "daily_cost"
	TypeSessionCost   = "session_cost"
	TypeTokenBurnRate = "token_burn_rate"
)

// Severity grades an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// warningFraction is the fraction of a cost threshold at which a
// warning fires before the critical threshold is reached.
const warningFraction = 0.8

// burnRateWindow is how many recent samples the burn-rate check
// averages over. A single noisy interval should not page anyone.
const burnRateWindow = 5

// Thresholds is the configured alert policy.
type Thresholds struct {
	Enabled       bool
	DailyCost     float64 // USD, 0 disables the check
	SessionCost   float64 // USD, 0 disables the check
	TokenBurnRate float64 // tokens per minute, 0 disables the check
}

// Alert is one threshold violation.
type Alert struct {
	Type      string
	Severity  Severity
	Message   string
	Value     float64
	Threshold float64
}

// SessionUsage is the snapshot of one live session that evaluation
// needs. The caller supplies DailyCost since a single session does not
// know the rest of the day.
type SessionUsage struct {
	SessionID   string
	SessionCost float64
	DailyCost   float64
	BurnRates   []float64 // recent samples in tokens/minute, oldest first
}

// Evaluate checks one session snapshot against the thresholds and
// returns every violation found. No I/O, no state.
func Evaluate(u SessionUsage, th Thresholds) []Alert {
	if !th.Enabled {
		return nil
	}

	var alerts []Alert

	if a, ok := costAlert(TypeDailyCost, "daily cost", u.DailyCost, th.DailyCost); ok {
		alerts = append(alerts, a)
	}
	if a, ok := costAlert(TypeSessionCost, fmt.Sprintf("session %s cost", u.SessionID), u.SessionCost, th.SessionCost); ok {
		alerts = append(alerts, a)
	}

	if th.TokenBurnRate > 0 && len(u.BurnRates) > 0 {
		mean := recentMean(u.BurnRates, burnRateWindow)
		if mean >= th.TokenBurnRate {
			alerts = append(alerts, Alert{
				Type:      TypeTokenBurnRate,
				Severity:  SeverityCritical,
				Message:   fmt.Sprintf("session %s is burning %.0f tokens/min (threshold %.0f)", u.SessionID, mean, th.TokenBurnRate),
				Value:     mean,
				Threshold: th.TokenBurnRate,
			})
		}
	}

	return alerts
}

// costAlert grades a cost value against its threshold: critical at the
// threshold, warning at warningFraction of it.
func costAlert(alertType, label string, value, threshold float64) (Alert, bool) {
	if threshold <= 0 {
		return Alert{}, false
	}

	var severity Severity
	var verb string
	switch {
	case value >= threshold:
		severity = SeverityCritical
		verb = "exceeds"
	case value >= threshold*warningFraction:
		severity = SeverityWarning
		verb = "approaching"
	default:
		return Alert{}, false
	}

	return Alert{
		Type:      alertType,
		Severity:  severity,
		Message:   fmt.Sprintf("%s $%.2f %s threshold $%.2f", label, value, verb, threshold),
		Value:     value,
		Threshold: threshold,
	}, true
}

// recentMean averages the last n values of rates.
func recentMean(rates []float64, n int) float64 {
	if len(rates) > n {
		rates = rates[len(rates)-n:]
	}
	var sum float64
	for _, r := range rates {
		sum += r
	}
	return sum / float64(len(rates))
}
