/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package logctx is a trimmed structured-logging facade: a leveled
// logger that formats lines as RFC5424 syslog records when asked, or as
// plain timestamped text otherwise. Every engine package accepts a
// *Logger at construction rather than writing to the log package
// directly.
package logctx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return "UNKNOWN"
}

const defaultAppname = "local-sent"

// Logger writes leveled, optionally structured log lines to an
// underlying writer. It is safe for concurrent use.
type Logger struct {
	mtx      sync.Mutex
	wtr      io.Writer
	lvl      Level
	appname  string
	hostname string
	raw      bool
}

// New builds a Logger writing to wtr at the given minimum level. When
// raw is true, lines are plain "<ts> <level> <msg> k=v ..." text; when
// false, lines are RFC5424-framed syslog records suitable for a remote
// sink.
func New(wtr io.Writer, lvl Level, raw bool) *Logger {
	hostname, _ := os.Hostname()
	return &Logger{
		wtr:      wtr,
		lvl:      lvl,
		appname:  defaultAppname,
		hostname: hostname,
		raw:      raw,
	}
}

// NewDiscard returns a Logger that drops everything, for tests and
// callers that don't want log output.
func NewDiscard() *Logger {
	return New(io.Discard, ERROR+1, true)
}

func (l *Logger) Debug(msg string, kv ...rfc5424.SDParam) error { return l.output(DEBUG, msg, kv...) }
func (l *Logger) Info(msg string, kv ...rfc5424.SDParam) error  { return l.output(INFO, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...rfc5424.SDParam) error  { return l.output(WARN, msg, kv...) }
func (l *Logger) Error(msg string, kv ...rfc5424.SDParam) error { return l.output(ERROR, msg, kv...) }

func (l *Logger) output(lvl Level, msg string, kv ...rfc5424.SDParam) error {
	if lvl < l.lvl {
		return nil
	}
	ts := time.Now()
	var line string
	if l.raw {
		line = l.rawLine(ts, lvl, msg, kv...)
	} else {
		b, err := l.rfcLine(ts, lvl, msg, kv...)
		if err != nil {
			return err
		}
		line = string(b)
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if _, err := io.WriteString(l.wtr, strings.TrimRight(line, "\n")); err != nil {
		return err
	}
	_, err := io.WriteString(l.wtr, "\n")
	return err
}

func (l *Logger) rawLine(ts time.Time, lvl Level, msg string, kv ...rfc5424.SDParam) string {
	var b strings.Builder
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(lvl.String())
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, p := range kv {
		fmt.Fprintf(&b, " %s=%s", p.Name, p.Value)
	}
	return b.String()
}

func (l *Logger) rfcLine(ts time.Time, lvl Level, msg string, kv ...rfc5424.SDParam) ([]byte, error) {
	m := rfc5424.Message{
		Priority:  priority(lvl),
		Timestamp: ts,
		Hostname:  l.hostname,
		AppName:   l.appname,
		Message:   []byte(msg),
	}
	if len(kv) > 0 {
		m.StructuredData = []rfc5424.StructuredData{{ID: "local-sent@1", Parameters: kv}}
	}
	return m.MarshalBinary()
}

func priority(lvl Level) rfc5424.Priority {
	switch lvl {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	default:
		return rfc5424.User | rfc5424.Info
	}
}

// KV builds a structured-data parameter the way callers attach
// contextual fields (session IDs, byte counts, peer addresses) to a log
// line.
func KV(name string, value interface{}) rfc5424.SDParam {
	if s, ok := value.(string); ok {
		return rfc5424.SDParam{Name: name, Value: s}
	}
	return rfc5424.SDParam{Name: name, Value: fmt.Sprintf("%v", value)}
}

// KVErr is a shorthand for KV("error", err).
func KVErr(err error) rfc5424.SDParam {
	return KV("error", err)
}

// With returns a child logger that prepends the given fields to every
// line it writes, used to correlate every log line for one receive
// session under its session ID.
func (l *Logger) With(kv ...rfc5424.SDParam) *ScopedLogger {
	return &ScopedLogger{parent: l, fields: kv}
}

// ScopedLogger is a Logger bound to a fixed set of structured-data
// fields, appended ahead of each call's own fields.
type ScopedLogger struct {
	parent *Logger
	fields []rfc5424.SDParam
}

func (s *ScopedLogger) Debug(msg string, kv ...rfc5424.SDParam) error {
	return s.parent.output(DEBUG, msg, append(append([]rfc5424.SDParam{}, s.fields...), kv...)...)
}
func (s *ScopedLogger) Info(msg string, kv ...rfc5424.SDParam) error {
	return s.parent.output(INFO, msg, append(append([]rfc5424.SDParam{}, s.fields...), kv...)...)
}
func (s *ScopedLogger) Warn(msg string, kv ...rfc5424.SDParam) error {
	return s.parent.output(WARN, msg, append(append([]rfc5424.SDParam{}, s.fields...), kv...)...)
}
func (s *ScopedLogger) Error(msg string, kv ...rfc5424.SDParam) error {
	return s.parent.output(ERROR, msg, append(append([]rfc5424.SDParam{}, s.fields...), kv...)...)
}
