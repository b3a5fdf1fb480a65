package lookup

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// SSHConfig describes how to reach a host that stores pattern tables.
type SSHConfig struct {
	Host     string
	User     string
	Password string
	KeyPath  string
	Port     int
	// Timeout bounds the SSH handshake. Zero selects 5s.
	Timeout time.Duration
}

// SSHSource reads a text table from a remote host by running cat over SSH.
// The client connection is reused across loads.
type SSHSource struct {
	Path string

	mu     sync.Mutex
	cfg    SSHConfig
	client *ssh.Client
}

// NewSSHSource validates cfg and prepares a source for the remote path.
func NewSSHSource(cfg SSHConfig, path string) (*SSHSource, error) {
	if cfg.Host == "" {
		return nil, errors.New("ssh host is required for remote pattern tables")
	}
	if path == "" {
		return nil, errors.New("remote pattern table path is required")
	}
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &SSHSource{Path: path, cfg: cfg}, nil
}

func (s *SSHSource) String() string {
	return fmt.Sprintf("ssh://%s@%s/%s", s.cfg.User, net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)), strings.TrimPrefix(s.Path, "/"))
}

// Load fetches and parses the remote table.
func (s *SSHSource) Load(ctx context.Context) (*Table, error) {
	client, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		s.reset()
		return nil, errors.Wrap(err, "create ssh session")
	}
	defer session.Close()

	out, err := session.Output("cat " + shellQuote(s.Path))
	if err != nil {
		// A remote exit status leaves the connection usable.
		var exit *ssh.ExitError
		if !errors.As(err, &exit) {
			s.reset()
		}
		return nil, errors.Wrapf(err, "read %s via ssh", s.Path)
	}
	t, err := ReadTable(bytes.NewReader(out))
	if err != nil {
		return nil, errors.Wrapf(err, "%s", s)
	}
	return t, nil
}

// Close drops the cached SSH connection.
func (s *SSHSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *SSHSource) reset() {
	s.mu.Lock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.mu.Unlock()
}

func (s *SSHSource) dial(ctx context.Context) (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	auth, err := s.authMethods()
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.cfg.Timeout,
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "dial ssh")
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "create ssh client")
	}

	s.client = ssh.NewClient(clientConn, chans, reqs)
	return s.client, nil
}

func (s *SSHSource) authMethods() ([]ssh.AuthMethod, error) {
	auth := []ssh.AuthMethod{}
	if s.cfg.Password != "" {
		auth = append(auth, ssh.Password(s.cfg.Password))
	}
	if s.cfg.KeyPath != "" {
		key, err := os.ReadFile(s.cfg.KeyPath)
		if err != nil {
			return nil, errors.Wrap(err, "read ssh key")
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.Wrap(err, "parse ssh key")
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if len(auth) == 0 {
		return nil, errors.New("no ssh password or key configured")
	}
	return auth, nil
}

// shellQuote wraps value in single quotes with embedded quotes escaped.
func shellQuote(value string) string {
	escaped := strings.ReplaceAll(value, "'", "'\\''")
	return fmt.Sprintf("'%s'", escaped)
}
