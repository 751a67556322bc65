package liveness

import (
	"fmt"
	"os/exec"
	"strings"
)

// CommandRebooter shells out to the configured reboot command, typically
// "systemctl reboot".
type CommandRebooter struct {
	command string
}

func NewCommandRebooter(command string) *CommandRebooter {
	return &CommandRebooter{command: command}
}

func (r *CommandRebooter) Reboot() error {
	fields := strings.Fields(r.command)
	if len(fields) == 0 {
		return fmt.Errorf("empty reboot command")
	}

	if err := exec.Command(fields[0], fields[1:]...).Run(); err != nil {
		return fmt.Errorf("reboot command %q failed: %w", r.command, err)
	}
	return nil
}
