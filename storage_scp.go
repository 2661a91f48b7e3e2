package boxspiegel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// sshDialer runs command on the remote host and hands its stdin/stdout to
// session while it runs.
type sshDialer interface {
	Run(ctx context.Context, command string, session func(stdin io.Writer, stdout io.Reader) error) error
}

type SSHOptions struct {
	IdentityFile   string
	KnownHostsFile string
	Timeout        time.Duration
}

type sshClientDialer struct {
	addr    string
	user    string
	options SSHOptions
}

// NewSCPBoxStorer publishes by secure-copying the staged tree to
// server:remotePath and reads existing catalogs over HTTP from baseURL.
func NewSCPBoxStorer(baseURL string, server string, remotePath string, options SSHOptions, fetcher *Fetcher, sugar *zap.SugaredLogger) (SCPBoxStorageConfiguration, error) {
	dialer, err := newSSHClientDialer(server, options)
	if err != nil {
		return SCPBoxStorageConfiguration{}, err
	}
	return SCPBoxStorageConfiguration{
		baseURL:    baseURL,
		remotePath: remotePath,
		fetcher:    fetcher,
		dialer:     dialer,
		sugar:      sugar,
	}, nil
}

// newSSHClientDialer parses a [user@]host[:port] server string.
func newSSHClientDialer(server string, options SSHOptions) (*sshClientDialer, error) {
	if server == "" {
		return nil, fmt.Errorf("%w: server is empty", ErrConfiguration)
	}
	d := &sshClientDialer{options: options}

	hostPort := server
	if u, h, found := strings.Cut(server, "@"); found {
		d.user = u
		hostPort = h
	}
	if d.user == "" {
		current, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("%w: no user in server %q and the current user is unknown: %w", ErrConfiguration, server, err)
		}
		d.user = current.Username
	}
	if _, _, err := net.SplitHostPort(hostPort); err != nil {
		hostPort = net.JoinHostPort(hostPort, "22")
	}
	d.addr = hostPort
	return d, nil
}

func (d *sshClientDialer) clientConfig() (*ssh.ClientConfig, func(), error) {
	home, _ := os.UserHomeDir()
	cleanup := func() {}

	knownHostsFile := d.options.KnownHostsFile
	if knownHostsFile == "" {
		knownHostsFile = filepath.Join(home, ".ssh", "known_hosts")
	}
	hostKeyCallback, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, cleanup, fmt.Errorf("%w: loading known hosts %s: %w", ErrConfiguration, knownHostsFile, err)
	}

	var auths []ssh.AuthMethod
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			auths = append(auths, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			cleanup = func() { conn.Close() }
		}
	}

	identityFiles := []string{d.options.IdentityFile}
	if d.options.IdentityFile == "" {
		identityFiles = []string{
			filepath.Join(home, ".ssh", "id_ed25519"),
			filepath.Join(home, ".ssh", "id_ecdsa"),
			filepath.Join(home, ".ssh", "id_rsa"),
		}
	}
	var signers []ssh.Signer
	for _, path := range identityFiles {
		pem, err := os.ReadFile(path)
		if err != nil {
			if d.options.IdentityFile != "" {
				cleanup()
				return nil, func() {}, fmt.Errorf("%w: reading identity file: %w", ErrConfiguration, err)
			}
			continue
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			// passphrase protected keys are left to the agent
			var missing *ssh.PassphraseMissingError
			if errors.As(err, &missing) && d.options.IdentityFile == "" {
				continue
			}
			cleanup()
			return nil, func() {}, fmt.Errorf("%w: parsing identity file %s: %w", ErrConfiguration, path, err)
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		auths = append(auths, ssh.PublicKeys(signers...))
	}
	if len(auths) == 0 {
		return nil, cleanup, fmt.Errorf("%w: no ssh agent or identity file available", ErrConfiguration)
	}

	return &ssh.ClientConfig{
		User:            d.user,
		Auth:            auths,
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.options.Timeout,
	}, cleanup, nil
}

func (d *sshClientDialer) Run(ctx context.Context, command string, session func(stdin io.Writer, stdout io.Reader) error) error {
	config, cleanup, err := d.clientConfig()
	defer cleanup()
	if err != nil {
		return err
	}

	netDialer := net.Dialer{Timeout: d.options.Timeout}
	conn, err := netDialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return fmt.Errorf("%w: connecting to %s: %w", ErrTransport, d.addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, d.addr, config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: ssh handshake with %s: %w", ErrTransport, d.addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	// closing the client unblocks the session if the context is cancelled
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	sess, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("%w: opening ssh session: %w", ErrTransport, err)
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := sess.Start(command); err != nil {
		return fmt.Errorf("%w: starting %q: %w", ErrTransport, command, err)
	}

	sessionErr := session(stdin, stdout)
	stdin.Close()
	waitErr := sess.Wait()
	if sessionErr != nil {
		return fmt.Errorf("%w: %w", ErrTransport, sessionErr)
	}
	if waitErr != nil {
		return fmt.Errorf("%w: remote command %q failed: %w", ErrTransport, command, waitErr)
	}
	return nil
}

func (s SCPBoxStorageConfiguration) LoadCatalog(ctx context.Context, box BoxName) (*Catalog, error) {
	catalogURL := CatalogURL(s.baseURL, box)
	catalog, err := s.fetcher.FetchCatalog(ctx, catalogURL)
	if errors.Is(err, ErrNotFound) {
		s.sugar.Infof("no catalog at %s, this is the first publish of %s", catalogURL, box)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't get current catalog: %w", err)
	}
	return catalog, nil
}

// Publish copies stagingRoot/org into remotePath on the server.
func (s SCPBoxStorageConfiguration) Publish(ctx context.Context, stagingRoot string, box BoxName) error {
	command := "scp -rt " + shellQuote(s.remotePath)
	s.sugar.Debugf("running %s", command)

	err := s.dialer.Run(ctx, command, func(stdin io.Writer, stdout io.Reader) error {
		return scpSendTree(stdin, bufio.NewReader(stdout), filepath.Join(stagingRoot, box.Organization))
	})
	if err != nil {
		return fmt.Errorf("uploading box failed: %w", err)
	}
	s.sugar.Infof("published %s to %s", box, s.remotePath)
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// scpReadAck reads one sink response: 0 is ok, 1 and 2 carry a message.
func scpReadAck(r *bufio.Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("reading scp response: %w", err)
	}
	switch b {
	case 0:
		return nil
	case 1, 2:
		msg, _ := r.ReadString('\n')
		return fmt.Errorf("remote scp: %s", strings.TrimSpace(msg))
	}
	return fmt.Errorf("unexpected scp response byte %#x", b)
}

// scpSendTree streams dir and everything below it using the scp source side
// of the protocol. Directories are sent before the metadata file next to
// them so the catalog lands after its artifacts.
func scpSendTree(w io.Writer, acks *bufio.Reader, dir string) error {
	if err := scpReadAck(acks); err != nil {
		return err
	}
	return scpSendDir(w, acks, dir)
}

func scpSendDir(w io.Writer, acks *bufio.Reader, dir string) error {
	name := filepath.Base(dir)
	if strings.ContainsAny(name, "\n") {
		return fmt.Errorf("cannot copy %q: name contains a newline", dir)
	}
	if _, err := fmt.Fprintf(w, "D0755 0 %s\n", name); err != nil {
		return err
	}
	if err := scpReadAck(acks); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []os.DirEntry
	for _, entry := range entries {
		if entry.IsDir() {
			if err := scpSendDir(w, acks, filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
			continue
		}
		files = append(files, entry)
	}
	for _, entry := range files {
		if err := scpSendFile(w, acks, filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, "E\n"); err != nil {
		return err
	}
	return scpReadAck(acks)
}

func scpSendFile(w io.Writer, acks *bufio.Reader, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	if strings.ContainsAny(name, "\n") {
		return fmt.Errorf("cannot copy %q: name contains a newline", path)
	}

	if _, err := fmt.Fprintf(w, "C0644 %d %s\n", info.Size(), name); err != nil {
		return err
	}
	if err := scpReadAck(acks); err != nil {
		return err
	}
	if _, err := io.CopyN(w, f, info.Size()); err != nil {
		return fmt.Errorf("sending %s: %w", path, err)
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return err
	}
	return scpReadAck(acks)
}
