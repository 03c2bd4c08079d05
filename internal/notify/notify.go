// README: Fire-and-forget notification sender contract with a logging default.
package notify

import (
	"context"
	"log/slog"

	"kota/internal/types"
)

// Sender delivers templated notifications. Failures are the sender's problem:
// callers log and move on, an undelivered email never blocks a transition.
type Sender interface {
	Notify(ctx context.Context, recipient types.ID, template string, data map[string]any) error
}

// LogSender is the default implementation; it just records the notification.
type LogSender struct{}

func (LogSender) Notify(_ context.Context, recipient types.ID, template string, data map[string]any) error {
	slog.Info("notify", "recipient", recipient, "template", template, "data", data)
	return nil
}
