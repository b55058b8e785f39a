package cli

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/Keksclan/swrgate/config"
)

// newLogger builds the process logger. Development defaults to a console
// writer, production to JSON lines.
func newLogger(w io.Writer, cfg config.Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Log.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
		level = l
	}

	format := cfg.Log.Format
	if format == "" {
		format = "console"
		if cfg.Server.Production() {
			format = "json"
		}
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "swrgate").Logger(), nil
}
