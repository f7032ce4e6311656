package core

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// WorkerPool judges one job per call to Judge. It owns no scheduling of its
// own; Producer decides which jobs to hand it and bounds how many run
// concurrently.
type WorkerPool struct {
	cfg      Config
	runner   *RunnerClient
	progress chan<- Job
}

func NewWorkerPool(cfg Config, runner *RunnerClient, progress chan<- Job) *WorkerPool {
	return &WorkerPool{cfg: cfg, runner: runner, progress: progress}
}

// Judge runs job to completion: compile, then every case in order, sending a
// progress snapshot after every state transition. The caller owns job's
// lifetime; Judge never touches the mirror directly, it only emits snapshots
// for the consumer to apply.
func (w *WorkerPool) Judge(ctx context.Context, job Job) {
	problem, ok := w.cfg.FindProblem(job.Submission.ProblemID)
	if !ok {
		w.fail(job, ResultSystemError, "problem no longer configured")
		return
	}
	language, ok := w.cfg.FindLanguage(job.Submission.Language)
	if !ok {
		w.fail(job, ResultSystemError, "language no longer configured")
		return
	}

	job.State = StateRunning
	job.Result = ResultRunning
	job.Cases[0].Result = CaseRunning
	job.UpdatedTime = nowStamp()
	w.emit(job)

	workdir := filepath.Join(w.cfg.WorkRoot, strconv.Itoa(job.ID))
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		w.fail(job, ResultSystemError, "cannot create workdir: "+err.Error())
		return
	}
	defer os.RemoveAll(workdir)

	binaryPath, info, ok := w.compile(ctx, workdir, job.Submission.SourceCode, language)
	job.Cases[0].Info = info
	if !ok {
		job.Cases[0].Result = CaseCompilationError
		job.Result = ResultCompilationError
		job.State = StateFinished
		job.UpdatedTime = nowStamp()
		w.emit(job)
		return
	}
	job.Cases[0].Result = CaseCompilationSuccess
	job.UpdatedTime = nowStamp()
	w.emit(job)

	for i, pc := range problem.Cases {
		caseIdx := i + 1 // cases[0] is the compilation pseudo-case
		job.Cases[caseIdx].Result = CaseRunning
		job.UpdatedTime = nowStamp()
		w.emit(job)

		verdict, durationUs, memoryBytes, caseInfo := w.judgeCase(ctx, workdir, binaryPath, problem, pc, caseIdx)

		job.Cases[caseIdx].Result = verdict
		job.Cases[caseIdx].Time = durationUs
		job.Cases[caseIdx].Memory = memoryBytes
		job.Cases[caseIdx].Info = caseInfo
		if verdict == CaseAccepted {
			job.Score += pc.Score
		}
		if job.Result == ResultRunning {
			job.Result = verdict.asJobResult()
		}
		job.UpdatedTime = nowStamp()
		w.emit(job)
	}

	if job.Result == ResultRunning {
		job.Result = ResultAccepted
	}
	job.State = StateFinished
	job.UpdatedTime = nowStamp()
	w.emit(job)
}

// judgeCase runs one case through the runner and comparator, returning the
// case verdict plus its recorded time and memory measurements.
func (w *WorkerPool) judgeCase(ctx context.Context, workdir, binaryPath string, problem Problem, pc ProblemCase, caseNum int) (CaseResult, int64, int64, string) {
	outPath := filepath.Join(workdir, fmt.Sprintf("%d.out", caseNum))
	start := time.Now()
	outcome, err := w.runner.RunCase(ctx, workdir, binaryPath, pc.InputFile, outPath, pc.TimeLimit, pc.MemoryLimit)
	durationUs := time.Since(start).Microseconds()
	if err != nil {
		return CaseRuntimeError, durationUs, 0, err.Error()
	}

	switch {
	case outcome.tle:
		return CaseTimeLimitExceeded, durationUs, outcome.memory, "time limit exceeded"
	case outcome.mle:
		return CaseMemoryLimitExceeded, durationUs, outcome.memory, "memory limit exceeded"
	case outcome.status != 0:
		return CaseRuntimeError, durationUs, outcome.memory, fmt.Sprintf("exit status %d", outcome.status)
	}

	ok, err := Compare(problem.Type, outPath, pc.AnswerFile)
	if err != nil {
		return CaseRuntimeError, durationUs, outcome.memory, err.Error()
	}
	if !ok {
		return CaseWrongAnswer, durationUs, outcome.memory, ""
	}
	return CaseAccepted, durationUs, outcome.memory, ""
}

// compile builds source into workdir using language.Command, substituting
// %INPUT%/%OUTPUT% placeholders with the source and binary paths. Returns
// the built binary path, captured compiler output (on a failure with no
// output, the error text instead), and whether it succeeded.
func (w *WorkerPool) compile(ctx context.Context, workdir, sourceCode string, language Language) (string, string, bool) {
	srcPath := filepath.Join(workdir, language.FileName)
	if err := os.WriteFile(srcPath, []byte(sourceCode), 0o644); err != nil {
		return "", "writing source: " + err.Error(), false
	}

	binaryPath := filepath.Join(workdir, "main")
	args := make([]string, len(language.Command))
	for i, a := range language.Command {
		a = strings.ReplaceAll(a, "%INPUT%", srcPath)
		a = strings.ReplaceAll(a, "%OUTPUT%", binaryPath)
		args[i] = a
	}
	if len(args) == 0 {
		return "", "no compile command configured", false
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = workdir
	out, err := cmd.CombinedOutput()
	if err != nil {
		info := string(out)
		if info == "" {
			info = err.Error()
		}
		return "", info, false
	}
	return binaryPath, string(out), true
}

func (w *WorkerPool) fail(job Job, result JobResult, info string) {
	job.State = StateFinished
	job.Result = result
	job.UpdatedTime = nowStamp()
	if len(job.Cases) > 0 {
		job.Cases[0].Info = info
	}
	w.emit(job)
}

func (w *WorkerPool) emit(job Job) {
	w.progress <- job.Clone()
}
