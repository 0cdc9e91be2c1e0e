//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the child in its own process group so a kill
// reaches everything it forked.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
