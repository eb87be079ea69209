package process

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	logger.Store(&nop)
}

// SetLogger installs the logger used for spawn, wait and kill diagnostics.
func SetLogger(l zerolog.Logger) {
	l = l.With().Str("component", "process").Logger()
	logger.Store(&l)
}

func log() *zerolog.Logger {
	return logger.Load()
}
