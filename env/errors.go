package env

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ConnectionError reports that a host couldn't be reached or refused
// authentication, as opposed to a command failing on the remote side.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ssh reserves exit status 255 for its own failures (unreachable host, auth
// rejection); remote commands report any other status.
func classifyRemote(host string, err error) error {
	if err == nil {
		return nil
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 255 {
		return &ConnectionError{Host: host, Err: err}
	}
	return err
}

// isMissingDataset recognizes zfs's complaint about a nonexistent dataset in
// a failed command's output.
func isMissingDataset(err error) bool {
	return err != nil && strings.Contains(err.Error(), "does not exist")
}
