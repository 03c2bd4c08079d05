// README: JSON slog setup shared by the API binary and background workers.
package logging

import (
	"log/slog"
	"os"
)

// Init installs a JSON handler as the default slog logger.
func Init() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
