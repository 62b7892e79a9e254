// Package logger provides module scoped zerolog loggers.
package logger

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// ContextKey stores a *Logger in a context
var ContextKey = contextKey{}

type contextKey struct{}

// Logging is the logger configuration
type Logging struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// Logger is a zerolog logger tagged with the module it logs for
type Logger struct {
	*zerolog.Logger
	module string
}

func (l *Logger) Module() string {
	return l.module
}

// Named returns a child logger whose module is the dotted path of l's
// module and name
func (l *Logger) Named(name ...string) *Logger {
	mm := name
	if l.module != rootName {
		mm = append([]string{l.module}, name...)
	}
	module := strings.ToUpper(strings.Join(mm, "."))
	sub := root.get().Logger.With().Str("module", module).Logger().Level(l.GetLevel())
	return &Logger{module: module, Logger: &sub}
}

// WithContext returns ctx carrying l
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKey, l)
}

// Fetch returns a child of the logger carried by ctx, or a new module
// logger when there is none
func Fetch(ctx context.Context, module string) *Logger {
	if pl, ok := ctx.Value(ContextKey).(*Logger); ok && pl != nil {
		return pl.Named(module)
	}
	return GetLogger(module)
}
