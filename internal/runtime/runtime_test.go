package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFromContext(t *testing.T) {
	rt := New()
	defer rt.stopSignal()

	if got := FromContext(rt.Ctx()); got != rt {
		t.Fatalf("expected runtime from its own context")
	}
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected nil runtime from a bare context")
	}
	if rt.RunID() == "" {
		t.Fatalf("run id must be set")
	}
}

func TestShutdownRunsHooksInReverse(t *testing.T) {
	rt := New()
	defer rt.stopSignal()

	var order []string
	rt.OnShutdown(func(ctx context.Context) {
		if ctx.Err() != nil {
			t.Errorf("cleanup context should be live")
		}
		order = append(order, "history")
	})
	rt.OnShutdown(func(context.Context) { order = append(order, "docker") })

	rt.shutdown()

	if rt.Ctx().Err() == nil {
		t.Fatal("shutdown should cancel the runtime context")
	}
	if strings.Join(order, ",") != "docker,history" {
		t.Fatalf("unexpected hook order %v", order)
	}

	rt.shutdown()
	if len(order) != 2 {
		t.Fatalf("hooks must run once, ran %v", order)
	}
}

func TestResolveProject(t *testing.T) {
	t.Setenv("CIPIPE_HOME", t.TempDir())

	dir := filepath.Join(t.TempDir(), "Viral-NGS")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	rt := New()
	defer rt.stopSignal()

	p, err := rt.ResolveProject(dir)
	if err != nil {
		t.Fatalf("ResolveProject: %v", err)
	}
	if p.Name() != "viral-ngs" {
		t.Fatalf("unexpected project name %q", p.Name())
	}
	if rt.logPath == "" || !strings.HasSuffix(rt.logPath, "run-"+rt.RunID()+".log") {
		t.Fatalf("unexpected run log path %q", rt.logPath)
	}

	if _, err := New().ResolveProject(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for a missing project dir")
	}
}

func TestResolveProjectName(t *testing.T) {
	cases := map[string]string{
		"/src/viral-ngs":   "viral-ngs",
		"/src/My Project!": "my_project_",
		"/src/.hidden":     "hidden",
		"/":                "anonymous-project",
	}
	for in, want := range cases {
		if got := resolveProjectName(in); got != want {
			t.Fatalf("resolveProjectName(%q) = %q, want %q", in, got, want)
		}
	}
}
