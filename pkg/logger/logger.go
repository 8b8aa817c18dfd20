package logger

import (
	"fmt"
	"log"
	"log/slog"
	"os"
)

// New returns a stdlib logger for libraries that only accept *log.Logger.
// Output goes through base at debug level, tagged with component. A nil base
// falls back to a prefixed stdout logger.
func New(base *slog.Logger, component string) *log.Logger {
	if base == nil {
		prefix := fmt.Sprintf("[%s] ", component)
		return log.New(os.Stdout, prefix, log.LstdFlags)
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), slog.LevelDebug)
}
