package env

import (
	"fmt"
	"os/exec"
	"strings"

	"monks.co/zmirror/logger"
)

var _ Executor = &Remote{}

// Remote runs commands on another host over ssh. Pipelined transfers share
// the same tunnel settings: key, cipher, and optional compression.
type Remote struct {
	sshHost   string
	sshKey    string
	cipher    string
	compress  bool
	trustHost bool
}

func NewRemote(host, key string) *Remote {
	return &Remote{sshHost: host, sshKey: key}
}

// WithCipher selects the ssh cipher for the tunnel.
func (remote *Remote) WithCipher(cipher string) *Remote {
	remote.cipher = cipher
	return remote
}

// WithCompression forces ssh-level compression of the tunnel.
func (remote *Remote) WithCompression() *Remote {
	remote.compress = true
	return remote
}

// WithTrustUnknownHost accepts previously unseen host keys instead of
// failing on them.
func (remote *Remote) WithTrustUnknownHost() *Remote {
	remote.trustHost = true
	return remote
}

func (remote *Remote) sshArgs() []string {
	var args []string
	if remote.sshKey != "" {
		args = append(args, "-i", remote.sshKey)
	}
	if remote.cipher != "" {
		args = append(args, "-c", remote.cipher)
	}
	if remote.compress {
		args = append(args, "-C")
	}
	if remote.trustHost {
		args = append(args, "-o", "StrictHostKeyChecking=accept-new")
	}
	return append(args, remote.sshHost)
}

func (remote *Remote) Exec(log logger.Logger, cmd ...string) ([]string, error) {
	args := append([]string{"ssh"}, append(remote.sshArgs(), strings.Join(cmd, " "))...)
	out, err := Exec(log, args...)
	return out, classifyRemote(remote.sshHost, err)
}

func (remote *Remote) Execf(log logger.Logger, s string, args ...any) ([]string, error) {
	return remote.Exec(log, strings.Fields(fmt.Sprintf(s, args...))...)
}

func (remote *Remote) Command(argv ...string) *exec.Cmd {
	args := append(remote.sshArgs(), strings.Join(argv, " "))
	return exec.Command("ssh", args...)
}

func (remote *Remote) Host() string {
	return remote.sshHost
}
