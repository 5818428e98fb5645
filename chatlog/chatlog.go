// Package chatlog implements the date-partitioned room transcript.
//
// One file holds the current day (`<room>.log`); at the first write past
// local midnight the live file is renamed to `<room>.log.<YYYY_MM_DD>`
// (suffixed with the day it covers) and a fresh base file is opened.
// Rotated files are never touched again. Everything is UTF-8.
package chatlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// SuffixLayout names rotated files after the day they cover.
	SuffixLayout = "2006_01_02"

	headerLayout = "Mon Jan 02 15:04 2006"
	lineLayout   = "15:04"
)

// Clock supplies wall-clock time; injectable so rollover is testable.
type Clock func() time.Time

// DailyLog is an append-only transcript with one writer. Every write is
// flushed to disk before returning: the browser reads files that may be
// appended to at the same moment.
type DailyLog struct {
	mu   sync.Mutex
	path string
	now  Clock
	file *os.File
	day  time.Time
}

// Open creates or appends to the base log file for baseName under dir and
// writes the "--- Log opened" header. The header is written once per
// handle, not once per room join.
func Open(baseName, dir string) (*DailyLog, error) {
	return OpenWithClock(baseName, dir, time.Now)
}

func OpenWithClock(baseName, dir string, now Clock) (*DailyLog, error) {
	l := &DailyLog{path: filepath.Join(dir, baseName), now: now}

	// A base file left behind by a previous run may cover an older day.
	if err := l.rotateStale(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chat log %s: %w", l.path, err)
	}
	l.file = file
	l.day = dayOf(now())

	header := fmt.Sprintf("--- Log opened: %s\n", now().Format(headerLayout))
	if _, err := file.WriteString(header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write log header: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("flush log header: %w", err)
	}
	return l, nil
}

// WriteLine appends one `HH:MM <text>` line, rotating first when the
// wall-clock day changed since the previous write. The line is on disk
// when WriteLine returns.
func (l *DailyLog) WriteLine(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	at := l.now()
	if !dayOf(at).Equal(l.day) {
		if err := l.rotate(at); err != nil {
			return err
		}
	}

	line := fmt.Sprintf("%s %s\n", at.Format(lineLayout), text)
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("write chat log line: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("flush chat log: %w", err)
	}
	return nil
}

// Message logs a plain room message as `<nick> text`.
func (l *DailyLog) Message(nick, text string) error {
	return l.WriteLine(fmt.Sprintf("<%s> %s", nick, text))
}

// Action logs a `/me` message as ` * nick text`.
func (l *DailyLog) Action(nick, text string) error {
	return l.WriteLine(fmt.Sprintf(" * %s %s", nick, text))
}

// Event logs joins, leaves, topics and other room events with the
// conventional `-!- ` marker.
func (l *DailyLog) Event(text string) error {
	return l.WriteLine("-!- " + text)
}

func (l *DailyLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *DailyLog) rotate(at time.Time) error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close chat log for rotation: %w", err)
	}
	rotated := l.path + "." + l.day.Format(SuffixLayout)
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rotate chat log to %s: %w", rotated, err)
	}
	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen chat log after rotation: %w", err)
	}
	l.file = file
	l.day = dayOf(at)
	return nil
}

func (l *DailyLog) rotateStale() error {
	info, err := os.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat chat log %s: %w", l.path, err)
	}
	covered := dayOf(info.ModTime())
	if covered.Equal(dayOf(l.now())) {
		return nil
	}
	rotated := l.path + "." + covered.Format(SuffixLayout)
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rotate stale chat log to %s: %w", rotated, err)
	}
	return nil
}

// FileFor resolves the on-disk name for a day-offset: the base file for
// today, the dated file for any past day.
func FileFor(dir, baseName string, daysBack int, today time.Time) string {
	if daysBack <= 0 {
		return filepath.Join(dir, baseName)
	}
	day := today.AddDate(0, 0, -daysBack)
	return filepath.Join(dir, baseName+"."+day.Format(SuffixLayout))
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
