//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func configureProcessGroup(cmd *exec.Cmd) {}

func terminatingSignal(ps *os.ProcessState) (int, bool) { return 0, false }
