package executor

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/openspaces/spaced/pkg/engine"
)

// SSHConfig describes the remote shell to provision.
type SSHConfig struct {
	Host           string        `yaml:"host" validate:"required"`
	Port           int           `yaml:"port" validate:"min=0,max=65535"`
	User           string        `yaml:"user" validate:"required"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	Password       string        `yaml:"password"`
	KnownHostsPath string        `yaml:"known_hosts_path"`
	Insecure       bool          `yaml:"insecure"`
	Timeout        time.Duration `yaml:"timeout"`
}

func (c *SSHConfig) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.PrivateKeyPath != "" {
		keyBytes, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no authentication method configured")
	}

	var hostKeys ssh.HostKeyCallback
	if c.Insecure {
		hostKeys = ssh.InsecureIgnoreHostKey() //nolint:gosec
	} else {
		path := c.KnownHostsPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("locate known_hosts: %w", err)
			}
			path = filepath.Join(home, ".ssh", "known_hosts")
		}
		var err error
		hostKeys, err = knownhosts.New(path)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}, nil
}

// SSH runs commands in a single long-lived shell on a remote host.
// Multi-line commands are staged to the remote over SFTP and sourced.
type SSH struct {
	client  *ssh.Client
	sftp    *sftp.Client
	session *ssh.Session
	stream  *stream
}

// NewSSH dials the host and starts the remote shell.
func NewSSH(cfg *SSHConfig) (*SSH, error) {
	clientCfg, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", port)), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Host, err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open sftp channel: %w", err)
	}

	session, err := client.NewSession()
	if err != nil {
		sftpClient.Close()
		client.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		sftpClient.Close()
		client.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		sftpClient.Close()
		client.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		sftpClient.Close()
		client.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		sftpClient.Close()
		client.Close()
		return nil, fmt.Errorf("start remote shell: %w", err)
	}

	e := &SSH{client: client, sftp: sftpClient, session: session}
	e.stream = &stream{
		stdin:  stdin,
		stdout: bufio.NewScanner(stdout),
		stderr: bufio.NewScanner(stderr),
		stage:  e.stageRemote,
	}
	return e, nil
}

func (e *SSH) stageRemote(content string) (string, error) {
	path := "/tmp/spaced-" + uuid.NewString()[:8] + ".sh"
	f, err := e.sftp.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write([]byte(content)); err != nil {
		e.sftp.Remove(path)
		return "", err
	}
	return path, nil
}

// Run executes one command in the persistent remote shell.
func (e *SSH) Run(ctx context.Context, command string) (engine.Outcome, error) {
	return e.stream.run(ctx, command)
}

// Close shuts the remote shell and the connection down.
func (e *SSH) Close() error {
	fmt.Fprintln(e.stream.stdin, "exit")
	e.session.Close()
	e.sftp.Close()
	return e.client.Close()
}
