package env

import (
	"fmt"
	"os/exec"
	"strings"

	"monks.co/zmirror/logger"
)

// Executor runs primitive commands on one host, locally or over ssh. Exec
// and Execf run a command to completion and return its output lines;
// Command builds an un-started process for use as one end of a transfer
// pipe.
type Executor interface {
	Exec(log logger.Logger, cmd ...string) ([]string, error)
	Execf(log logger.Logger, s string, args ...any) ([]string, error)
	Command(argv ...string) *exec.Cmd
	Host() string
}

var _ Executor = LocalExecutor{}
var Local = LocalExecutor{}

type LocalExecutor struct{}

func (LocalExecutor) Exec(log logger.Logger, args ...string) ([]string, error) {
	return Exec(log, args...)
}

func (LocalExecutor) Execf(log logger.Logger, s string, args ...any) ([]string, error) {
	return Execf(log, s, args...)
}

func (LocalExecutor) Command(argv ...string) *exec.Cmd {
	return exec.Command(argv[0], argv[1:]...)
}

func (LocalExecutor) Host() string {
	return "local"
}

func Exec(log logger.Logger, args ...string) ([]string, error) {
	name, args := args[0], args[1:]
	var arglog []string
	for _, arg := range args {
		if strings.Contains(arg, " ") {
			arglog = append(arglog, fmt.Sprintf(`"%s"`, arg))
		} else {
			arglog = append(arglog, arg)
		}
	}
	log.Printf("%s %s", name, strings.Join(arglog, " "))
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return nil, fmt.Errorf("running '%s': %w: %s", name, err,
			strings.Join(strings.Split(output, "\n"), "; "))
	}
	if output == "" {
		return nil, nil
	}
	return strings.Split(output, "\n"), nil
}

func Execf(log logger.Logger, s string, args ...any) ([]string, error) {
	return Exec(log, strings.Fields(fmt.Sprintf(s, args...))...)
}
