// Package auditlog is a rotating, append-only JSON-lines trail of trading
// events (PaperTrader writes its fills to it), adapted from the teacher's internal/logging structured
// logger with the HTTP-middleware and PII-masking concerns stripped (this
// engine never touches request bodies).
package auditlog

import (
	"encoding/json"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the rotating file the audit trail is written to.
type Config struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultConfig matches a typical small-deployment rotation policy.
func DefaultConfig(path string) Config {
	return Config{FilePath: path, MaxSizeMB: 50, MaxBackups: 10, MaxAgeDays: 30}
}

// Log is an append-only, rotating JSON-lines audit trail.
type Log struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
}

// New constructs a Log backed by a lumberjack rotating writer.
func New(cfg Config) *Log {
	return &Log{
		writer: &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		},
	}
}

type entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Kind      string                 `json:"kind"`
	Fields    map[string]interface{} `json:"fields"`
}

// Record appends one structured entry. Kind names the event; PaperTrader
// writes "fill" and "routed_fill".
// Marshal/write failures are swallowed: the audit trail is best-effort and
// must never block trading.
func (l *Log) Record(kind string, fields map[string]interface{}) {
	e := entry{Timestamp: time.Now().UTC(), Kind: kind, Fields: fields}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.writer.Write(data)
}

// Close flushes and releases the underlying rotating file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}
