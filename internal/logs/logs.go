package logs

import (
	"io"
	"os"
	"sync"

	"github.com/0xa1bed0/cipipe/internal/ui"
	"github.com/moby/term"
	"github.com/sirupsen/logrus"
)

var (
	initOnce sync.Once
	logger   *ui.Logger
)

func Init() {
	initOnce.Do(func() {
		_, isTerm := term.GetFdInfo(os.Stdout)
		opts := ui.Options{
			Out:       os.Stdout,
			TailLines: 15,
			LiveTail:  isTerm,
			Level:     ui.LevelInfo,
		}
		logger = ui.New(opts)
		routeLibraryLogs(logger)
		logger.Debug("logs initialized with opts %+v", opts)
	})
}

// routeLibraryLogs sends the logrus standard logger, which moby/go-archive
// writes to through containerd/log, into debug lines instead of stderr.
func routeLibraryLogs(l *ui.Logger) {
	logrus.SetOutput(l.LineWriter())
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
}

func L() *ui.Logger {
	Init()
	return logger
}

func SetDebugVerbosity(cnt int) {
	switch {
	case cnt <= 0:
		L().SetLevel(ui.LevelInfo)
	case cnt == 1:
		L().SetLevel(ui.LevelDebug)
	default:
		L().SetLevel(ui.LevelTrace)
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func SetComponent(component string) {
	L().SetComponent(component)
}

// SetRunLog starts copying every log line into w.
func SetRunLog(w io.Writer) {
	L().SetRunLog(w)
}

func Banner(title string) {
	L().Banner(title)
}

func Infof(format string, args ...any) {
	L().Info(format, args...)
}

func Debugf(format string, args ...any) {
	L().Debug(format, args...)
}

func Warnf(format string, args ...any) {
	L().Warn(format, args...)
}

func Errorf(format string, args ...any) {
	L().Error(format, args...)
}

// NewTailWriter streams noisy output (docker build steps) through a tail box.
func NewTailWriter(name string) io.WriteCloser {
	return L().TailWriter(name)
}

// Writer is the raw user-facing output, used for docker progress rendering.
func Writer() io.Writer {
	return L().Out()
}

// StreamWriter passes container output through to stdout and the run log.
func StreamWriter(name string) io.Writer {
	return L().StreamWriter(name)
}

// DebugWriter routes third-party log output into debug lines.
func DebugWriter() io.Writer {
	return L().LineWriter()
}

func PromptConfirm(text string, defaultAnswer bool) (bool, error) {
	return L().Confirm(text, defaultAnswer)
}

// Close closes the underlying log file, if any.
func Close() error {
	if logger != nil {
		return logger.Close()
	}
	return nil
}
