package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init installs the global logger: human-readable console output in dev,
// JSON lines everywhere else.
func Init(env string) {
	initTo(os.Stdout, env)
}

func initTo(out io.Writer, env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "dev" {
		cw := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(cw).With().Timestamp().Str("service", "messenger").Logger()
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "messenger").Logger()
}
