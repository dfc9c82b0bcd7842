// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package sylog implements a basic leveled logger for the judger daemon,
// carried over from Apptainer's own logging package and trimmed to a
// single always-built implementation (the teacher's version split a real
// and a no-op implementation behind a "sylog" build tag; the judger
// daemon has no embedding use case that wants the no-op variant, so that
// split is dropped here).
package sylog

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// messageLevel orders log severities; a message is written when its
// level is at or below the current logger level. The default level is
// InfoLevel, so VerboseLevel and DebugLevel are opt-in verbosity tiers.
type messageLevel int

const (
	FatalLevel messageLevel = iota - 3
	ErrorLevel
	WarnLevel
	LogLevel
	InfoLevel
	VerboseLevel
	DebugLevel
)

func (l messageLevel) String() string {
	switch l {
	case FatalLevel:
		return "FATAL"
	case ErrorLevel:
		return "ERROR"
	case WarnLevel:
		return "WARNING"
	case LogLevel:
		return "LOG"
	case InfoLevel:
		return "INFO"
	case VerboseLevel:
		return "VERBOSE"
	case DebugLevel:
		return "DEBUG"
	default:
		return "VERBOSE" + strconv.Itoa(int(l-VerboseLevel))
	}
}

var messageColors = map[messageLevel]string{
	FatalLevel: "\x1b[31m",
	ErrorLevel: "\x1b[31m",
	WarnLevel:  "\x1b[33m",
	InfoLevel:  "\x1b[34m",
}

const envVar = "JUDGERD_MESSAGELEVEL"

var (
	loggerLevel = InfoLevel
	logWriter   = (io.Writer)(os.Stderr)
)

func init() {
	if l, err := strconv.Atoi(os.Getenv(envVar)); err == nil {
		loggerLevel = messageLevel(l)
	}
}

func prefix(msgLevel messageLevel) string {
	colorReset := "\x1b[0m"
	messageColor, ok := messageColors[msgLevel]
	if !ok {
		colorReset = ""
		messageColor = ""
	}

	if loggerLevel < DebugLevel {
		return fmt.Sprintf("%s%-8s%s ", messageColor, msgLevel.String()+":", colorReset)
	}

	pc, _, _, ok := runtime.Caller(3)
	details := runtime.FuncForPC(pc)
	funcName := "????()"
	if ok && details != nil {
		parts := strings.Split(details.Name(), ".")
		funcName = parts[len(parts)-1] + "()"
	}

	tag := fmt.Sprintf("[P=%d]", os.Getpid())
	return fmt.Sprintf("%s%-8s%s%-12s%-30s", messageColor, msgLevel, colorReset, tag, funcName)
}

func writef(msgLevel messageLevel, format string, a ...interface{}) {
	if loggerLevel < msgLevel {
		return
	}
	message := strings.TrimRight(fmt.Sprintf(format, a...), "\n")
	fmt.Fprintf(logWriter, "%s%s\n", prefix(msgLevel), message)
}

// Fatalf logs at Fatal and terminates the process. Library code (anything
// reachable from a single judging request) must never call this — only
// cmd/judgerd's startup path may.
func Fatalf(format string, a ...interface{}) {
	writef(FatalLevel, format, a...)
	os.Exit(255)
}

// Errorf logs an error that is also being returned to the caller.
func Errorf(format string, a ...interface{}) { writef(ErrorLevel, format, a...) }

// Warningf logs a recoverable problem, e.g. a best-effort cleanup failure.
func Warningf(format string, a ...interface{}) { writef(WarnLevel, format, a...) }

// Infof logs at the default-visible level.
func Infof(format string, a ...interface{}) { writef(InfoLevel, format, a...) }

// Verbosef logs fine-grained operational detail.
func Verbosef(format string, a ...interface{}) { writef(VerboseLevel, format, a...) }

// Debugf logs developer-facing detail, including caller identification.
func Debugf(format string, a ...interface{}) { writef(DebugLevel, format, a...) }

// SetLevel sets the process-wide log level.
func SetLevel(l int) { loggerLevel = messageLevel(l) }

// GetLevel returns the current log level as an integer.
func GetLevel() int { return int(loggerLevel) }

// Writer returns the underlying writer, or io.Discard if logging is
// silenced below LogLevel.
func Writer() io.Writer {
	if loggerLevel <= LogLevel {
		return io.Discard
	}
	return logWriter
}

// SetWriter installs a new writer for subsequent log calls and returns the
// previous one, so tests can capture output and restore it afterward.
func SetWriter(w io.Writer) io.Writer {
	old := logWriter
	if w != nil {
		logWriter = w
	}
	return old
}
