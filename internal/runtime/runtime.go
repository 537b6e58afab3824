package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	appconfig "github.com/0xa1bed0/cipipe/internal/apps/cipipe/config"
	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/0xa1bed0/cipipe/internal/ui"
	"github.com/google/uuid"
)

// Runtime owns the process-wide context, the run ID and the run log.
type Runtime struct {
	runID string

	ctx        context.Context    // global context
	cancelFunc context.CancelFunc // cancelFunc of global context
	stopSignal context.CancelFunc

	project *Project

	mu              sync.Mutex
	shutdownHooks   []func(ctx context.Context)
	shutdownTimeout time.Duration

	logPath string
}

type runtimeKey struct{}

// New creates the runtime. SIGINT and SIGTERM cancel its context, which stops
// running containers.
func New() *Runtime {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	baseCtx, cancel := context.WithCancel(sigCtx)

	rt := &Runtime{
		runID:           uuid.NewString(),
		cancelFunc:      cancel,
		stopSignal:      stop,
		shutdownTimeout: 5 * time.Second,
	}
	// Commands load the runtime from their context once at the top of the
	// handler and pass what they need down explicitly.
	rt.ctx = context.WithValue(baseCtx, runtimeKey{}, rt)
	return rt
}

func FromContext(ctx context.Context) *Runtime {
	v := ctx.Value(runtimeKey{})
	if v == nil {
		return nil
	}
	rt, _ := v.(*Runtime)
	return rt
}

func FromContextOrPanic(ctx context.Context) *Runtime {
	rt := FromContext(ctx)
	if rt == nil {
		panic(errors.New("runtime not found in this context"))
	}
	return rt
}

func (rt *Runtime) Ctx() context.Context {
	return rt.ctx
}

func (rt *Runtime) CancelCtx() {
	rt.cancelFunc()
}

func (rt *Runtime) RunID() string {
	return rt.runID
}

func (rt *Runtime) Project() *Project {
	return rt.project
}

// ResolveProject resolves the project directory once and starts the run log.
func (rt *Runtime) ResolveProject(path string) (*Project, error) {
	if rt.project != nil {
		return rt.project, nil
	}

	project, err := resolveProject(path)
	if err != nil {
		return nil, fmt.Errorf("resolve project %s: %w", path, err)
	}
	rt.project = project
	rt.openRunLog()

	return rt.project, nil
}

func (rt *Runtime) openRunLog() {
	logPath, err := appconfig.RunLogPath(rt.runID)
	if err != nil {
		logs.Warnf("can't create log directory: %v", err)
		return
	}
	runLog, err := ui.OpenRunLog(logPath, 200*time.Millisecond)
	if err != nil {
		logs.Warnf("%v", err)
		return
	}
	rt.logPath = logPath
	logs.SetRunLog(runLog)
	logs.Debugf("run %s logging to %s", rt.runID, logPath)
}

// OnShutdown registers fn to run when the process finishes, after the
// command returned or a signal stopped it. Hooks run in reverse order of
// registration with a fresh context bounded by the shutdown timeout.
func (rt *Runtime) OnShutdown(fn func(ctx context.Context)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.shutdownHooks = append(rt.shutdownHooks, fn)
}

func (rt *Runtime) shutdown() {
	rt.CancelCtx()

	rt.mu.Lock()
	hooks := rt.shutdownHooks
	rt.shutdownHooks = nil
	rt.mu.Unlock()

	cleanupCtx, cancel := context.WithTimeout(context.Background(), rt.shutdownTimeout)
	defer cancel()
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](cleanupCtx)
	}
}

// Finalize handles both panic and normal exit and terminates the process with
// a non-zero status on failure. Call it in a defer at the top of main.
func (rt *Runtime) Finalize(appName, helpHint string, execErr *error) {
	if r := recover(); r != nil {
		fmt.Fprintf(os.Stderr, "%s panic: %v\n", appName, r)
		fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
		fmt.Fprintln(os.Stderr, "")
		if helpHint != "" {
			fmt.Fprintln(os.Stderr, helpHint)
		}

		rt.shutdown()

		logs.Close()
		os.Exit(2)
	}

	rt.shutdown()

	code := 0
	if execErr != nil && *execErr != nil {
		logs.Errorf("%s error: %v", appName, *execErr)
		if helpHint != "" {
			fmt.Fprintln(os.Stderr, helpHint)
		}
		code = 1
	}
	if rt.logPath != "" && code != 0 {
		logs.Infof("full log: %s", rt.logPath)
	}

	rt.stopSignal()
	logs.Close()
	if code != 0 {
		os.Exit(code)
	}
}
