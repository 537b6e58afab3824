package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerReplaysIntoRunLog(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	l := New(Options{Out: &out, Level: LevelInfo, Component: "build"})

	l.Info("pulling %s", "app:latest")
	l.Debug("cache miss for layer 3")

	var runLog bytes.Buffer
	l.SetRunLog(&runLog)
	l.Warn("push skipped")

	got := runLog.String()
	for _, want := range []string{
		"[INFO] [build] pulling app:latest\n",
		"[DEBG] [build] cache miss for layer 3\n",
		"[WARN] [build] push skipped\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("run log missing %q: %q", want, got)
		}
	}
	if strings.Contains(out.String(), "cache miss") {
		t.Fatalf("debug line reached stdout at info level: %q", out.String())
	}
}

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	l := New(Options{Out: &out, Level: LevelWarn})

	l.Info("hidden info")
	l.Debug("hidden debug")
	l.Warn("visible warn")
	l.Error("visible error")

	got := out.String()
	for _, hidden := range []string{"hidden info", "hidden debug"} {
		if strings.Contains(got, hidden) {
			t.Fatalf("%q should not reach stdout at warn level: %q", hidden, got)
		}
	}
	for _, visible := range []string{"visible warn", "visible error"} {
		if !strings.Contains(got, visible) {
			t.Fatalf("%q missing from stdout: %q", visible, got)
		}
	}

	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	if !strings.Contains(out.String(), "[DEBG] now visible") {
		t.Fatalf("debug line missing after raising level: %q", out.String())
	}
}

func TestTailWriterPrintsLinesWithoutLiveBox(t *testing.T) {
	t.Parallel()

	var out, runLog bytes.Buffer
	l := New(Options{Out: &out, RunLog: &runLog, Level: LevelInfo})

	w := l.TailWriter("coverage")
	_, _ = w.Write([]byte("Uploading reports\r\nDone"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := out.String(); got != "Uploading reports\nDone\n" {
		t.Fatalf("stdout = %q", got)
	}
	for _, want := range []string{"[TAIL coverage] start", "[TAIL coverage] Uploading reports", "[TAIL coverage] Done", "[TAIL coverage] end"} {
		if !strings.Contains(runLog.String(), want) {
			t.Fatalf("run log missing %q: %q", want, runLog.String())
		}
	}
}

func TestTailWriterLiveBoxKeepsLastLines(t *testing.T) {
	t.Parallel()

	var out, runLog bytes.Buffer
	l := New(Options{Out: &out, RunLog: &runLog, Level: LevelInfo, LiveTail: true, TailLines: 2})

	w := l.TailWriter("coverage")
	_, _ = w.Write([]byte("one\ntwo\nthree\n"))

	if l.tail == nil || len(l.tail.lines) != 2 || !strings.HasPrefix(l.tail.lines[0], "two") {
		t.Fatalf("tail box should hold the last two lines, got %+v", l.tail)
	}
	if !strings.Contains(out.String(), "\x1b[") {
		t.Fatalf("live box should be redrawn in place: %q", out.String())
	}

	l.Info("between")
	if !strings.Contains(out.String(), "between") {
		t.Fatalf("log line missing while tail is open: %q", out.String())
	}

	_ = w.Close()
	if l.tail != nil {
		t.Fatal("closing the writer should end the tail")
	}
	if strings.Count(runLog.String(), "[TAIL coverage] ") != 5 {
		t.Fatalf("run log should carry start, every line and end: %q", runLog.String())
	}
}

func TestLineWriterSplitsLines(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	l := New(Options{Out: &out, Level: LevelDebug})

	w := l.LineWriter()
	_, _ = w.Write([]byte("level=INFO msg=\"connected\"\nlevel=DEBUG "))
	_, _ = w.Write([]byte("msg=ping\n\n"))

	got := out.String()
	if strings.Count(got, "[DEBG]") != 2 {
		t.Fatalf("expected two debug lines, got %q", got)
	}
}

func TestRunLogFileStampsLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.log")
	f, err := OpenRunLog(path, time.Hour)
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	f.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	l := New(Options{Out: &bytes.Buffer{}, RunLog: f, Level: LevelInfo})
	l.Info("build started")
	l.Banner("stage test")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "[2024-05-01T10:00:00.000] [INFO] build started\n") {
		t.Fatalf("unexpected run log: %q", data)
	}
	if !strings.Contains(string(data), "===== stage test =====") {
		t.Fatalf("banner missing from run log: %q", data)
	}
}
