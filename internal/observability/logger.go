package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/reguctl/internal/logging"
)

// InitLogger installs the process-wide logger for a binary. Level, writer
// and timestamp handling come from the logging runtime profile; every line
// is tagged with the app name.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
