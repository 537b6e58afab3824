// Package ui renders cipipe's console output: leveled log lines, a live tail
// box for noisy container output, tables and prompts. Every line also lands
// in the run log.
package ui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	// LevelTrace is debug output with the calling file and function.
	LevelTrace
)

var levelTags = [...]string{
	LevelError: "ERR ",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBG",
	LevelTrace: "DEBG",
}

const timestampLayout = "2006-01-02T15:04:05.000"

type Options struct {
	// Out defaults to os.Stdout.
	Out io.Writer

	// RunLog gets a plain copy of every line at every level.
	RunLog io.Writer

	// TailLines is the height of the tail box. Defaults to 5.
	TailLines int

	// LiveTail redraws the tail box in place. CI log viewers can't handle
	// cursor movement, so without it tail lines are printed as they come.
	LiveTail bool

	Level     Level
	Component string
}

type palette struct {
	warn     lipgloss.Style
	err      lipgloss.Style
	banner   lipgloss.Style
	box      lipgloss.Style
	boxTitle lipgloss.Style
}

func newPalette() palette {
	framed := lipgloss.NewStyle().Bold(true).Border(lipgloss.NormalBorder()).Padding(0, 1).Margin(1, 0)
	return palette{
		warn:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		err:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		banner:   framed,
		box:      framed,
		boxTitle: lipgloss.NewStyle().Bold(true),
	}
}

type Logger struct {
	mu sync.Mutex

	out    io.Writer
	runLog io.Writer
	// lines logged before the run log was attached
	pending []string

	level     Level
	component string
	colors    palette

	live      bool
	tailLines int
	tail      *tailBox
}

func New(opts Options) *Logger {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 5
	}
	return &Logger{
		out:       opts.Out,
		runLog:    opts.RunLog,
		level:     opts.Level,
		component: opts.Component,
		colors:    newPalette(),
		live:      opts.LiveTail,
		tailLines: opts.TailLines,
	}
}

// SetRunLog attaches the run log once the run ID is known and replays what
// was logged before. Later calls are ignored.
func (l *Logger) SetRunLog(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.runLog != nil {
		return
	}
	l.runLog = w
	for _, line := range l.pending {
		io.WriteString(w, line)
	}
	l.pending = nil
}

func (l *Logger) SetComponent(component string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.component = component
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) Out() io.Writer {
	return l.out
}

// Close ends an open tail and closes the run log.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.endTailLocked()
	if c, ok := l.runLog.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, l.colors.err, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, l.colors.warn, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, lipgloss.Style{}, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, lipgloss.Style{}, format, args...)
}

func (l *Logger) log(level Level, style lipgloss.Style, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level >= LevelTrace {
		msg = caller(4) + msg
	}
	prefix := "[" + levelTags[level] + "] "
	if l.component != "" {
		prefix += "[" + l.component + "] "
	}

	l.recordLocked(prefix + msg + "\n")
	if level > l.level {
		return
	}
	l.besideTailLocked(func() {
		stamp := "[" + time.Now().Format(timestampLayout) + "] "
		fmt.Fprintln(l.out, style.Render(stamp+prefix+msg))
	})
}

// caller names the log call site skip frames up.
func caller(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "[?] "
	}
	fn := ""
	if f := runtime.FuncForPC(pc); f != nil {
		fn = strings.TrimPrefix(f.Name(), "github.com/0xa1bed0/cipipe/")
	}
	return fmt.Sprintf("[%s:%d %s] ", filepath.Base(file), line, fn)
}

// Banner prints a boxed title, used to separate pipeline stages.
func (l *Logger) Banner(title string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recordLocked("\n===== " + title + " =====\n\n")
	if s, ok := l.runLog.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	l.besideTailLocked(func() {
		fmt.Fprintln(l.out, l.colors.banner.Render(title))
	})
}

// LineWriter turns every written line into a debug log line. Third-party
// loggers write here.
func (l *Logger) LineWriter() io.Writer {
	return &lineWriter{emit: func(line string) {
		if line != "" {
			l.Debug("%s", line)
		}
	}}
}

// StreamWriter prints every line unchanged and records it in the run log
// under name. Container output goes here so pytest failures stay readable in
// CI.
func (l *Logger) StreamWriter(name string) io.Writer {
	return &lineWriter{emit: func(line string) {
		l.mu.Lock()
		defer l.mu.Unlock()

		l.recordLocked("[OUT " + name + "] " + line + "\n")
		l.besideTailLocked(func() {
			fmt.Fprintln(l.out, line)
		})
	}}
}

func (l *Logger) record(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordLocked(line)
}

func (l *Logger) recordLocked(line string) {
	if l.runLog == nil {
		l.pending = append(l.pending, line)
		return
	}
	io.WriteString(l.runLog, line)
}

// besideTailLocked prints with the live tail box taken off screen and draws
// it again below the new output.
func (l *Logger) besideTailLocked(print func()) {
	if !l.live || l.tail == nil {
		print()
		return
	}
	l.tail.erase(l.out)
	print()
	l.tail.draw(l.out, l.colors)
}

// lineWriter splits writes into lines, dropping the CR of CRLF endings.
type lineWriter struct {
	emit func(line string)

	mu  sync.Mutex
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf[:i]), "\r")
		w.buf = w.buf[i+1:]
		w.emit(line)
	}
	return len(p), nil
}

// flush emits an unterminated last line.
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(strings.TrimRight(string(w.buf), "\r"))
		w.buf = nil
	}
}
