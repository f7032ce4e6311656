package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWorkerPoolCompileSuccess(t *testing.T) {
	workdir := t.TempDir()
	w := &WorkerPool{}
	language := Language{FileName: "main.py", Command: []string{"cp", "%INPUT%", "%OUTPUT%"}}

	binaryPath, _, ok := w.compile(context.Background(), workdir, "print(1)", language)
	if !ok {
		t.Fatal("expected compile to succeed")
	}
	if binaryPath != filepath.Join(workdir, "main") {
		t.Fatalf("binaryPath = %q", binaryPath)
	}
	if _, err := os.Stat(binaryPath); err != nil {
		t.Fatalf("compiled artifact missing: %v", err)
	}
}

func TestWorkerPoolCompileFailure(t *testing.T) {
	workdir := t.TempDir()
	w := &WorkerPool{}
	language := Language{FileName: "main.c", Command: []string{"false"}}

	_, info, ok := w.compile(context.Background(), workdir, "int main(){}", language)
	if ok {
		t.Fatal("expected compile to fail")
	}
	if info == "" {
		t.Fatal("expected compiler output/info on failure")
	}
}

func TestWorkerPoolCompileNoCommandConfigured(t *testing.T) {
	workdir := t.TempDir()
	w := &WorkerPool{}
	language := Language{FileName: "main.c"}

	_, info, ok := w.compile(context.Background(), workdir, "", language)
	if ok {
		t.Fatal("expected compile to fail with no command configured")
	}
	if info != "no compile command configured" {
		t.Fatalf("info = %q", info)
	}
}

func TestJudgeFailsFastWhenProblemNotConfigured(t *testing.T) {
	progress := make(chan Job, 4)
	w := NewWorkerPool(Config{}, nil, progress)

	w.Judge(context.Background(), Job{ID: 1, Submission: Submission{ProblemID: 999}})

	select {
	case job := <-progress:
		if job.State != StateFinished || job.Result != ResultSystemError {
			t.Fatalf("unexpected final snapshot: %+v", job)
		}
	default:
		t.Fatal("expected a snapshot to be emitted")
	}
}

func TestJudgeFailsFastWhenLanguageNotConfigured(t *testing.T) {
	cfg := Config{FileConfig: FileConfig{Problems: []Problem{{ID: 1}}}}
	progress := make(chan Job, 4)
	w := NewWorkerPool(cfg, nil, progress)

	w.Judge(context.Background(), Job{ID: 1, Submission: Submission{ProblemID: 1, Language: "cobol"}})

	select {
	case job := <-progress:
		if job.State != StateFinished || job.Result != ResultSystemError {
			t.Fatalf("unexpected final snapshot: %+v", job)
		}
	default:
		t.Fatal("expected a snapshot to be emitted")
	}
}
