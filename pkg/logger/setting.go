package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const rootName = "root"

var root = rootLogger{}

type rootLogger struct {
	m sync.RWMutex
	l *Logger
}

func (rl *rootLogger) get() *Logger {
	rl.m.RLock()
	l := rl.l
	rl.m.RUnlock()
	if l != nil {
		return l
	}

	rl.m.Lock()
	defer rl.m.Unlock()
	if rl.l == nil {
		var err error
		rl.l, err = getLogger(Logging{Env: "prod", Level: "info"}, os.Stderr)
		if err != nil {
			panic(err)
		}
	}
	return rl.l
}

func (rl *rootLogger) set(l *Logger) {
	rl.m.Lock()
	defer rl.m.Unlock()
	rl.l = l
}

// GetLogger return logger with a scope
func GetLogger(scope ...string) *Logger {
	l := root.get()
	if len(scope) < 1 {
		return l
	}
	module := strings.ToUpper(strings.Join(scope, "."))
	sub := l.Logger.With().Str("module", module).Logger()
	return &Logger{module: module, Logger: &sub}
}

// Init initializes the root logger from user config
func Init(cfg Logging) error {
	return InitWithWriter(cfg, os.Stderr)
}

// InitWithWriter is like Init but writes to w
func InitWithWriter(cfg Logging, w io.Writer) error {
	l, err := getLogger(cfg, w)
	if err != nil {
		return err
	}
	root.set(l)
	return nil
}

// getLogger builds a root logger. An empty level means info; the "dev"
// environment writes human readable lines.
func getLogger(cfg Logging, w io.Writer) (*Logger, error) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, err
	}
	if cfg.Env == "dev" {
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		cw.FormatLevel = func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		}
		w = cw
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &Logger{module: rootName, Logger: &l}, nil
}
