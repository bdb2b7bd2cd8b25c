package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Process-wide leveled logging. The teacher's log.go/
 *	    textcolor.go set an ANSI color per severity and wrote lines
 *	    with dw_printf; this is the same idea built on
 *	    charmbracelet/log instead of hand-rolled ANSI codes.
 *
 *---------------------------------------------------------------*/

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the narrow logging surface every package file in this module
// depends on, so tests can inject a NopLogger or a capturing fake without
// pulling in charmbracelet/log.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// charmLogger adapts *charmlog.Logger to Logger.
type charmLogger struct {
	l *charmlog.Logger
}

// NewLogger builds the process-wide logger, colorized when stderr is a
// terminal (charmbracelet/log detects this itself).
func NewLogger(name string, level charmlog.Level) Logger {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Prefix:          name,
		Level:           level,
		ReportTimestamp: true,
	})
	return charmLogger{l: l}
}

func (c charmLogger) Debugf(format string, args ...any) { c.l.Debugf(format, args...) }
func (c charmLogger) Infof(format string, args ...any)  { c.l.Infof(format, args...) }
func (c charmLogger) Errorf(format string, args ...any) { c.l.Errorf(format, args...) }

// NopLogger discards everything; used as the default when a component is
// constructed without an explicit logger (e.g. in unit tests).
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
