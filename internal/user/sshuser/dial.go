// Package sshuser implements the User backend over an authenticated SSH
// session plus its SFTP subsystem, grounded on backend/sftp/{sftp,ssh,
// ssh_internal}.go's client/session wrapping and auth-option shape.
package sshuser

import (
	"context"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	sshagent "github.com/xanzy/ssh-agent"

	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/dvlog"
	"github.com/km0e/dv/internal/sshconfig"
)

// DialOptions parameterizes one hop of the proxy-jump chain.
type DialOptions struct {
	Alias           string // ssh-config Host alias, distinct from HostName: ProxyJump lookups key on this
	Host            string // resolved HostName (or Alias, if the config had no HostName directive)
	Port            string // default "22"
	User            string
	IdentityFile    string // path to a PEM private key
	Password        string // used only if no key succeeds
	HostKeyCallback ssh.HostKeyCallback // nil -> accept-all (spec §9 Open Question 3)
}

// Backend is the SSH/SFTP implementation of user.Backend.
type Backend struct {
	client *ssh.Client
	sftp   *sftp.Client
	// stack holds every hop's *ssh.Client from the outermost jump to the
	// target, target last. Its existence — not just the top element — is
	// what keeps intermediate hops alive (spec §4.2.2, design note in §9).
	stack []*ssh.Client
}

var defaultDialTimeout = 15 * time.Second

// Dial resolves alias in cfg, recursively following ProxyJump hops, and
// returns a Backend authenticated against the final target.
func Dial(ctx context.Context, cfg sshconfig.Config, alias string, password string) (*Backend, error) {
	host := cfg.Lookup(alias)
	if host == nil {
		return nil, dverr.New(dverr.SSH, "no ssh config entry for "+alias)
	}
	opts := optionsFromHost(alias, host, password)
	return dialChain(ctx, cfg, opts, nil)
}

// optionsFromHost builds the DialOptions for the ssh-config block h, known
// under alias. alias is kept distinct from the resolved HostName: it is the
// key a ProxyJump directive (or a recursive Lookup) names, never the
// address actually dialed.
func optionsFromHost(alias string, h *sshconfig.Host, password string) DialOptions {
	port := h.Port
	if port == "" {
		port = "22"
	}
	user := h.User
	if user == "" {
		user = currentUser()
	}
	hostName := h.HostName
	if hostName == "" {
		hostName = alias
	}
	return DialOptions{
		Alias:        alias,
		Host:         hostName,
		Port:         port,
		User:         user,
		IdentityFile: h.IdentityFile,
		Password:     password,
	}
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}

// dialChain connects opts, first recursively dialing through opts' own
// ProxyJump hop (looked up in cfg) if the underlying ssh config entry names
// one. parentStack accumulates every hop dialed so far.
func dialChain(ctx context.Context, cfg sshconfig.Config, opts DialOptions, parentStack []*ssh.Client) (*Backend, error) {
	host := cfg.Lookup(opts.Alias)
	var jumpAlias string
	if host != nil {
		jumpAlias = host.ProxyJump
	}

	clientConfig, err := buildClientConfig(opts)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(opts.Host, opts.Port)

	if jumpAlias == "" {
		conn, err := net.DialTimeout("tcp", addr, defaultDialTimeout)
		if err != nil {
			return nil, dverr.Wrap(dverr.SSH, "dial "+addr, err)
		}
		return finishDial(conn, addr, clientConfig, parentStack)
	}

	jumpHost := cfg.Lookup(jumpAlias)
	if jumpHost == nil {
		return nil, dverr.New(dverr.SSH, "no ssh config entry for proxy jump host "+jumpAlias)
	}
	jumpOpts := optionsFromHost(jumpAlias, jumpHost, opts.Password)
	jumpBackend, err := dialChain(ctx, cfg, jumpOpts, parentStack)
	if err != nil {
		return nil, err
	}
	dvlog.Debugf(opts.Host, "connecting via proxy jump %s", jumpAlias)

	conn, err := jumpBackend.client.Dial("tcp", addr)
	if err != nil {
		return nil, dverr.Wrap(dverr.SSH, "open direct-tcpip channel via "+jumpAlias, err)
	}
	return finishDial(conn, addr, clientConfig, jumpBackend.stack)
}

func finishDial(conn net.Conn, addr string, clientConfig *ssh.ClientConfig, parentStack []*ssh.Client) (*Backend, error) {
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		if isAuthExhausted(err) {
			return nil, dverr.Wrap(dverr.AuthFailed, "no auth method succeeded for "+addr, err)
		}
		return nil, dverr.Wrap(dverr.SSH, "ssh handshake with "+addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, dverr.Wrap(dverr.SFTP, "open sftp subsystem on "+addr, err)
	}

	stack := append(append([]*ssh.Client{}, parentStack...), client)
	return &Backend{client: client, sftp: sftpClient, stack: stack}, nil
}

// buildClientConfig assembles the auth-method list in the fixed order spec
// §4.2.2 mandates: none -> public-key (from the identity file if one is
// configured, otherwise from a running ssh-agent) -> password (if
// supplied). The first method the server accepts and that
// succeeds wins; if none do, the caller sees AuthFailed.
func buildClientConfig(opts DialOptions) (*ssh.ClientConfig, error) {
	// golang.org/x/crypto/ssh always probes "none" first as part of its
	// internal auth negotiation before trying the methods below, so the
	// "none" step of spec §4.2.2's auth order needs no explicit entry here.
	var methods []ssh.AuthMethod

	if opts.IdentityFile != "" {
		signer, err := loadSigner(opts.IdentityFile)
		if err != nil {
			dvlog.Debugf(opts.Host, "skipping identity file %s: %v", opts.IdentityFile, err)
		} else {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	} else if agentSigners, err := agentSigners(); err == nil && len(agentSigners) > 0 {
		methods = append(methods, ssh.PublicKeys(agentSigners...))
	}

	if opts.Password != "" {
		methods = append(methods, ssh.Password(opts.Password))
	}

	hostKeyCB := opts.HostKeyCallback
	if hostKeyCB == nil {
		// Permissive by design (spec §6, §9 Open Question 3): host-key
		// verification is accept-all; callers must use this over trusted
		// networks. A production rewrite would plumb a policy object here.
		hostKeyCB = ssh.InsecureIgnoreHostKey()
	}

	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            methods,
		HostKeyCallback: hostKeyCB,
		Timeout:         defaultDialTimeout,
	}, nil
}

func loadSigner(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(key)
}

func agentSigners() ([]ssh.Signer, error) {
	agentClient, _, err := sshagent.New()
	if err != nil {
		return nil, err
	}
	return agentClient.Signers()
}

// isAuthExhausted reports whether err is the ssh package's "ran out of
// methods" failure, as opposed to a lower-level transport error.
func isAuthExhausted(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// Close tears down every hop in the stack, target first.
func (b *Backend) Close() error {
	var firstErr error
	for i := len(b.stack) - 1; i >= 0; i-- {
		if err := b.stack[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
