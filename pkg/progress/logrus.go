package progress

import (
	log "github.com/sirupsen/logrus"
)

// LogrusHandler returns a Stream handler that writes events to logger,
// tagging each entry with its phase
func LogrusHandler(logger log.FieldLogger) func(Event) {
	return func(e Event) {
		entry := logger.WithField("phase", e.Phase)
		switch e.Severity {
		case Warning:
			entry.Warn(e.Text)
		case Error:
			entry.Error(e.Text)
		default:
			entry.Info(e.Text)
		}
	}
}
