package views

import (
	log "github.com/sirupsen/logrus"
)

// AlertSink receives one-shot alert notifications. Delivery is
// fire-and-forget; a failing sink is the sink's problem.
type AlertSink func(alert VehicleAlert)

// LogSink is the default sink: a structured log line per alert.
func LogSink(alert VehicleAlert) {
	log.WithFields(log.Fields{
		"alert_id":     alert.ID,
		"vehicle_id":   alert.VehicleID,
		"registration": alert.Registration,
		"value":        alert.Value,
	}).Warn(alert.Type)
}

// AlertNotifier is an edge detector over the derived alert set. An alert
// id fires exactly once when it first appears; when it disappears it is
// forgotten, so the same alert re-fires if the condition recurs.
type AlertNotifier struct {
	sink     AlertSink
	notified map[string]bool
}

// NewAlertNotifier creates a notifier delivering to the given sink.
func NewAlertNotifier(sink AlertSink) *AlertNotifier {
	if sink == nil {
		sink = LogSink
	}
	return &AlertNotifier{sink: sink, notified: make(map[string]bool)}
}

// Observe takes the current recomputed alert set, fires the sink for each
// newly-appearing id, and drops tracked ids that are gone.
func (n *AlertNotifier) Observe(alerts []VehicleAlert) {
	current := make(map[string]bool, len(alerts))
	for _, a := range alerts {
		current[a.ID] = true
		if !n.notified[a.ID] {
			n.notified[a.ID] = true
			n.sink(a)
		}
	}
	for id := range n.notified {
		if !current[id] {
			delete(n.notified, id)
		}
	}
}
