package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mattjoyce/ansible-actions/internal/inventory"
)

const sshDialTimeout = 10 * time.Second

// SSHRunner runs commands on a remote Ansible control node.
type SSHRunner struct {
	Addr   string
	Config *ssh.ClientConfig
	Grace  time.Duration
	Logger *slog.Logger
}

// NewSSHRunner builds a runner from an ssh-transport connector configuration.
// Without a known_hosts file the host key is not verified.
func NewSSHRunner(conf inventory.ConnectorConf, grace time.Duration, logger *slog.Logger) (*SSHRunner, error) {
	if conf.Address == "" {
		return nil, fmt.Errorf("connector %q: ssh address is empty", conf.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var auth []ssh.AuthMethod
	if conf.PrivateKeyPath != "" {
		key, err := os.ReadFile(conf.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("connector %q: read private key: %w", conf.Name, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("connector %q: parse private key: %w", conf.Name, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if conf.Password != "" {
		auth = append(auth, ssh.Password(conf.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("connector %q: private_key_path or password is required for ssh", conf.Name)
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if conf.KnownHostsPath != "" {
		cb, err := knownhosts.New(conf.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("connector %q: load known_hosts: %w", conf.Name, err)
		}
		hostKeys = cb
	} else {
		logger.Warn("ssh host key verification disabled", "connector", conf.Name)
	}

	port := conf.Port
	if port == 0 {
		port = 22
	}
	return &SSHRunner{
		Addr: net.JoinHostPort(conf.Address, strconv.Itoa(port)),
		Config: &ssh.ClientConfig{
			User:            conf.User,
			Auth:            auth,
			HostKeyCallback: hostKeys,
			Timeout:         sshDialTimeout,
		},
		Grace:  grace,
		Logger: logger,
	}, nil
}

func (r *SSHRunner) Run(ctx context.Context, c Command, timeout time.Duration) (Output, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := ssh.Dial("tcp", r.Addr, r.Config)
	if err != nil {
		return Output{}, fmt.Errorf("ssh dial %s: %w", r.Addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Output{}, fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	line := RemoteCommandLine(c)
	logger.Debug("starting remote process", "addr", r.Addr, "command", line, "timeout", timeout)
	if err := session.Start(line); err != nil {
		return Output{}, fmt.Errorf("ssh start: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- session.Wait()
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case err := <-waitErr:
		out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
		if err != nil {
			var exitErr *ssh.ExitError
			if !errors.As(err, &exitErr) {
				return out, fmt.Errorf("ssh wait: %w", err)
			}
			out.ExitCode = exitErr.ExitStatus()
		}
		return out, nil

	case <-deadline:
		logger.Warn("remote process timed out, sending SIGTERM", "addr", r.Addr)
		r.terminate(session, client, waitErr, logger)
		return Output{Stdout: stdout.String(), Stderr: stderr.String()}, fmt.Errorf("%w after %s", ErrTimedOut, timeout)

	case <-ctx.Done():
		logger.Warn("context cancelled, sending SIGTERM to remote process", "addr", r.Addr)
		r.terminate(session, client, waitErr, logger)
		return Output{Stdout: stdout.String(), Stderr: stderr.String()}, ctx.Err()
	}
}

func (r *SSHRunner) terminate(session *ssh.Session, client *ssh.Client, waitErr <-chan error, logger *slog.Logger) {
	if err := session.Signal(ssh.SIGTERM); err != nil {
		logger.Debug("ssh signal failed", "error", err)
	}

	grace := time.NewTimer(r.Grace)
	defer grace.Stop()

	select {
	case <-waitErr:
	case <-grace.C:
		// Many sshd builds ignore signal requests; dropping the connection
		// hangs up the remote process.
		logger.Warn("remote process did not exit after SIGTERM, closing connection")
		_ = client.Close()
		<-waitErr
	}
}

// RemoteCommandLine renders c as a POSIX shell command line.
func RemoteCommandLine(c Command) string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, shellQuote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, shellQuote(a))
	}
	line := strings.Join(parts, " ")
	if c.Dir != "" {
		line = "cd " + shellQuote(c.Dir) + " && " + line
	}
	return line
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,@%+", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
