//go:build !unix

package transcoder

import (
	"errors"
	"os"
	"os/exec"

	"video-cleaner/internal/logging"
)

func configureProcess(*exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logging.Warn("failed to kill process %d: %v", cmd.Process.Pid, err)
	}
}

func terminationSignal(*os.ProcessState) (string, bool) {
	return "", false
}
