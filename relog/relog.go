// Package relog provides Relay's process-wide logger: buffered, leveled,
// timestamped output to stderr or a rotating file, in the style of the
// teacher's cmn/nlog package.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package relog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type severity int32

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

const maxFileSize = 64 * 1024 * 1024 // rotate at 64MiB, matching the teacher's size-triggered rotation

var sevChar = [...]byte{'I', 'W', 'E'}

type logger struct {
	mu       sync.Mutex
	w        *bufio.Writer
	f        *os.File
	dir      string
	tag      string
	written  int64
	toStderr bool
}

var (
	std      = &logger{toStderr: true}
	minSev   atomic.Int32
	onceInit sync.Once
)

// SetOutputDir switches the logger from stderr to a rotating file under dir,
// named <tag>.<YYYYMMDD-HHMMSS>.<pid>.log. Safe to call once at startup, before the first
// log line — matching the teacher's init-before-first-use contract.
func SetOutputDir(dir, tag string) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.dir, std.tag, std.toStderr = dir, tag, false
	onceInit.Do(func() {})
	_ = std.rotate()
}

// SetLevel sets the minimum severity emitted; one of "info", "warn", "error".
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "warn", "warning":
		minSev.Store(int32(sevWarn))
	case "err", "error":
		minSev.Store(int32(sevErr))
	default:
		minSev.Store(int32(sevInfo))
	}
}

func (l *logger) rotate() error {
	if l.f != nil {
		l.flushLocked()
		l.f.Close()
	}
	name := fmt.Sprintf("%s.%s.%s.log", l.tag, time.Now().Format("20060102-150405"), strconv.Itoa(os.Getpid()))
	f, err := os.Create(filepath.Join(l.dir, name))
	if err != nil {
		return err
	}
	l.f, l.w, l.written = f, bufio.NewWriterSize(f, 32*1024), 0
	return nil
}

func (l *logger) flushLocked() {
	if l.w != nil {
		l.w.Flush()
	}
}

// Flush forces any buffered output to disk/stderr. Called on shutdown and
// periodically by a background ticker (cmd/relayd).
func Flush() {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.flushLocked()
}

func header(sev severity, depth int) string {
	_, fn, ln, ok := runtime.Caller(depth)
	if !ok {
		fn, ln = "???", 0
	} else if idx := strings.LastIndexByte(fn, '/'); idx >= 0 {
		fn = fn[idx+1:]
	}
	return fmt.Sprintf("%c %s %s:%d ", sevChar[sev], time.Now().Format("15:04:05.000000"), fn, ln)
}

func logf(sev severity, depth int, format string, args ...any) {
	if int32(sev) < minSev.Load() {
		return
	}
	line := header(sev, depth+3)
	if format == "" {
		line += fmt.Sprintln(args...)
	} else {
		line += fmt.Sprintf(format, args...)
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
	}

	std.mu.Lock()
	if std.toStderr || sev >= sevErr {
		os.Stderr.WriteString(line)
	}
	if !std.toStderr && std.w != nil {
		n, _ := std.w.WriteString(line)
		std.written += int64(n)
		if std.written >= maxFileSize {
			_ = std.rotate()
		}
	}
	std.mu.Unlock()
}

func Infof(format string, args ...any)    { logf(sevInfo, 0, format, args...) }
func Infoln(args ...any)                  { logf(sevInfo, 0, "", args...) }
func Warningf(format string, args ...any) { logf(sevWarn, 0, format, args...) }
func Warningln(args ...any)               { logf(sevWarn, 0, "", args...) }
func Errorf(format string, args ...any)   { logf(sevErr, 0, format, args...) }
func Errorln(args ...any)                 { logf(sevErr, 0, "", args...) }
