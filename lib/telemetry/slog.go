package telemetry

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// InitSlog installs the process-wide logger. pretty selects a colored,
// human-readable handler for terminals; otherwise logs stay in the
// default text format for collection.
func InitSlog(pretty bool) {
	if !pretty {
		return
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
}
