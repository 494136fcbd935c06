// Package logger builds the node's zap logger: console output, an optional
// rotating log file and an in-memory ring of recent entries served by the
// status API.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Message represents a single log message
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Level     string    `json:"level"` // debug, info, warning, error
	Logger    string    `json:"logger,omitempty"`
}

// Ring keeps the most recent log messages in memory.
type Ring struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int
}

// NewRing creates a ring holding at most maxSize messages.
func NewRing(maxSize int) *Ring {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Ring{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
	}
}

func (r *Ring) add(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, msg)
	if len(r.messages) > r.maxSize {
		r.messages = r.messages[len(r.messages)-r.maxSize:]
	}
}

// GetRecent returns the most recent n messages (newest first)
func (r *Ring) GetRecent(n int) []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > len(r.messages) {
		n = len(r.messages)
	}
	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = r.messages[len(r.messages)-1-i]
	}
	return result
}

// GetAll returns all messages (newest first)
func (r *Ring) GetAll() []Message {
	return r.GetRecent(0)
}

// ringCore is a zapcore.Core appending entries to a Ring. Fields are
// rendered into the message text as key=value pairs.
type ringCore struct {
	zapcore.LevelEnabler
	ring   *Ring
	fields []zapcore.Field
}

// Core returns a zapcore.Core writing into the ring at level and above.
func (r *Ring) Core(level zapcore.LevelEnabler) zapcore.Core {
	return &ringCore{LevelEnabler: level, ring: r}
}

func (c *ringCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &ringCore{LevelEnabler: c.LevelEnabler, ring: c.ring}
	clone.fields = append(append(clone.fields, c.fields...), fields...)
	return clone
}

func (c *ringCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *ringCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	var b strings.Builder
	b.WriteString(entry.Message)
	for _, key := range sortedKeys(enc.Fields) {
		fmt.Fprintf(&b, " %s=%v", key, enc.Fields[key])
	}

	c.ring.add(Message{
		Timestamp: entry.Time,
		Text:      b.String(),
		Level:     levelName(entry.Level),
		Logger:    entry.LoggerName,
	})
	return nil
}

func (c *ringCore) Sync() error { return nil }

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func levelName(l zapcore.Level) string {
	if l == zapcore.WarnLevel {
		return "warning"
	}
	return l.String()
}

// Options configures New.
type Options struct {
	Level      string // debug, info, warn, error
	File       string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	RingSize   int
	Console    bool
}

// New builds the node logger and the ring behind the logs API.
func New(opts Options) (*zap.Logger, *Ring, error) {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	ring := NewRing(opts.RingSize)
	cores := []zapcore.Core{ring.Core(level)}

	if opts.Console {
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level))
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), writer, level))
	}

	return zap.New(zapcore.NewTee(cores...)), ring, nil
}
