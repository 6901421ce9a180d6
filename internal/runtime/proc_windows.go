// SPDX-License-Identifier: MPL-2.0

//go:build windows

package runtime

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP
}

func killProcessTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

func setPriority(pid int, p Priority) error {
	h, err := windows.OpenProcess(windows.PROCESS_SET_INFORMATION, false, uint32(pid))
	if err != nil {
		return err
	}
	defer func() { _ = windows.CloseHandle(h) }()
	return windows.SetPriorityClass(h, priorityClass(p))
}

func priorityClass(p Priority) uint32 {
	switch {
	case p <= PriorityHigh:
		return windows.HIGH_PRIORITY_CLASS
	case p < PriorityNormal:
		return windows.ABOVE_NORMAL_PRIORITY_CLASS
	case p == PriorityNormal:
		return windows.NORMAL_PRIORITY_CLASS
	case p < PriorityIdle:
		return windows.BELOW_NORMAL_PRIORITY_CLASS
	default:
		return windows.IDLE_PRIORITY_CLASS
	}
}
