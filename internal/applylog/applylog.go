// Package applylog keeps a rotating, append-only record of every up/down
// execution, independent of the DB-resident _sqlbuns_migrations table
// (SPEC_FULL.md §10, §11): a history row can answer "what is applied", but
// only this log survives a database that is itself unreachable. Rotation
// is handled by gopkg.in/natefinch/lumberjack.v2, already an indirect
// dependency of the teacher.
package applylog

import (
	"fmt"
	"log"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultFileName is the rotating log's name under the migrations
// directory.
const DefaultFileName = "apply.log"

// Logger records migration lifecycle events to a rotating file.
type Logger struct {
	writer *lumberjack.Logger
	std    *log.Logger
}

// Open opens (creating if absent) the rotating log at path. MaxSize is in
// megabytes; MaxBackups/MaxAge bound retention the way lumberjack's own
// docs describe, sized generously since one line is written per migration
// file, not per statement.
func Open(path string) *Logger {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     90, // days
		Compress:   true,
	}
	return &Logger{
		writer: w,
		std:    log.New(w, "", 0),
	}
}

// Close flushes and closes the underlying rotating file.
func (l *Logger) Close() error {
	return l.writer.Close()
}

func (l *Logger) writeLine(verb, name string, extra string) {
	ts := time.Now().UTC().Format(time.RFC3339)
	if extra != "" {
		l.std.Printf("%s %s %s %s", ts, verb, name, extra)
		return
	}
	l.std.Printf("%s %s %s", ts, verb, name)
}

// Applied records a successfully committed forward migration.
func (l *Logger) Applied(name, checksum string) {
	l.writeLine("up", name, "checksum="+checksum)
}

// RolledBack records a successfully committed rollback.
func (l *Logger) RolledBack(name string) {
	l.writeLine("down", name, "")
}

// Failed records a migration attempt that failed; the caller has already
// rolled its transaction back when this is written (ApplyFailed, spec.md
// §7).
func (l *Logger) Failed(verb, name string, err error) {
	l.writeLine(verb+"-failed", name, fmt.Sprintf("error=%q", err.Error()))
}
