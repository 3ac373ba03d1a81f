//go:build unix

package transcoder

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"video-cleaner/internal/logging"
)

// configureProcess puts ffmpeg in its own process group so it and any
// helpers it forks can be killed together.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the job's whole process group, falling
// back to the leader alone if the group is already gone.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		if !errors.Is(err, unix.ESRCH) {
			logging.Warn("failed to kill process group %d: %v", pid, err)
		}
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logging.Warn("failed to kill process %d: %v", pid, err)
		}
	}
}

// terminationSignal returns the name of the signal that ended the process
// and whether it was SIGKILL.
func terminationSignal(ps *os.ProcessState) (string, bool) {
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return "", false
	}
	sig := ws.Signal()
	return unix.SignalName(sig), sig == syscall.SIGKILL
}
