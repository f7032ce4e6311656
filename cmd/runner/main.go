// Command runner is the sandboxed child process invoked once per judged
// case. It is a standalone binary on purpose: RLIMIT_AS must apply only to
// the judged program, and a crash of that program must not be able to
// damage the judge's own address space.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func main() {
	workdir := flag.String("p", "", "per-job workdir")
	inFile := flag.String("i", "", "input file")
	outFile := flag.String("o", "", "output file")
	timeLimitUs := flag.Int64("t", 0, "wall-clock time limit in microseconds")
	memLimitBytes := flag.Int64("m", 0, "address-space limit in bytes (0 = unset)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "runner: missing program to execute")
		os.Exit(2)
	}

	// Install the address-space limit on this process before spawning: the
	// limit is inherited by the child across fork, and the runner itself has
	// allocated essentially nothing yet.
	if *memLimitBytes > 0 {
		if err := setMemoryLimit(uint64(*memLimitBytes)); err != nil {
			fmt.Println(-1)
			return
		}
	}

	status, peakRSS, ok := run(*workdir, *inFile, *outFile, time.Duration(*timeLimitUs)*time.Microsecond, args)
	if !ok {
		// Deadline fired: print nothing, the parent reads an empty file as TLE.
		return
	}
	fmt.Println(status)
	fmt.Println(peakRSS)
}

func setMemoryLimit(limit uint64) error {
	rlim := unix.Rlimit{Cur: limit, Max: limit}
	return unix.Setrlimit(unix.RLIMIT_AS, &rlim)
}

// run spawns args[0] with args[1:], stdin from inFile and stdout to outFile,
// and waits with a wall-clock deadline. Returns (exitStatus, peakRSSBytes,
// true) on a completed wait, or (0, 0, false) if the deadline killed the
// child before it could be waited on (the parent interprets that as TLE).
// A spawn failure reports (-1, 0, true), matching the MLE-at-exec contract.
func run(workdir, inFile, outFile string, deadline time.Duration, args []string) (int, int64, bool) {
	in, err := os.Open(inFile)
	if err != nil {
		return -1, 0, true
	}
	defer in.Close()

	out, err := os.Create(outFile)
	if err != nil {
		return -1, 0, true
	}
	defer out.Close()

	cmd := exec.Command(args[0], args[1:]...)
	if workdir != "" {
		cmd.Dir = workdir
	}
	cmd.Stdin = in
	cmd.Stdout = out
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return -1, 0, true
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case <-timer.C:
		killProcessGroup(cmd)
		<-done
		return 0, 0, false
	case waitErr := <-done:
		return exitStatus(cmd, waitErr), peakRSSBytes(cmd), true
	}
}

func exitStatus(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState == nil {
		return -1
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok {
		if ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return ws.ExitStatus()
	}
	if waitErr == nil {
		return 0
	}
	return -1
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

// peakRSSBytes reads ru_maxrss from the exited child's rusage and scales it
// from KiB (Linux convention) to bytes. Isolated here so a non-Linux build
// only needs to change this one function.
func peakRSSBytes(cmd *exec.Cmd) int64 {
	if cmd.ProcessState == nil {
		return 0
	}
	ru, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage)
	if !ok {
		return 0
	}
	return ru.Maxrss * 1024
}
