package notify

import (
	"context"
	"log/slog"

	json "github.com/goccy/go-json"
)

// LoggingListener logs every event at info level on logger, or on the
// default logger when logger is nil.
func LoggingListener(logger *slog.Logger) Listener {
	return ListenerFunc(func(ctx context.Context, e Event) error {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		data, err := json.Marshal(e.Data)
		if err != nil {
			return err
		}
		l.InfoContext(ctx, "quill event",
			slog.String("event", e.Name),
			slog.String("run_id", e.RunID.String()),
			slog.String("data", string(data)),
		)
		return nil
	})
}
