package alert

import (
	"github.com/gen2brain/beeep"

	"cc_usage_mon/internal/logger"
)

// Notifier delivers alert batches as desktop notifications. Delivery
// failures are logged and dropped; alerting must never take the
// monitor down.
type Notifier struct {
	enabled bool
}

// NewNotifier creates a notifier. When disabled it swallows everything.
func NewNotifier(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

// Notify sends one desktop notification per alert.
func (n *Notifier) Notify(alerts []Alert) {
	if !n.enabled {
		return
	}

	for _, a := range alerts {
		var err error
		if a.Severity == SeverityCritical {
			err = beeep.Alert("cc_usage_mon", a.Message, "")
		} else {
			err = beeep.Notify("cc_usage_mon", a.Message, "")
		}
		if err != nil {
			logger.Warn("desktop notification failed", "type", a.Type, "error", err)
		}
	}
}
