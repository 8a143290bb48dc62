package sftp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/telemetry"
)

// Fetcher downloads export files from a remote SFTP endpoint.
type Fetcher struct {
	config *Config
	log    *telemetry.Logger

	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// NewFetcher creates a fetcher. Call Connect before use.
func NewFetcher(cfg *Config, log *telemetry.Logger) (*Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Fetcher{config: cfg, log: log.NewComponentLogger("sftp")}, nil
}

// Connect establishes the SSH and SFTP sessions.
func (f *Fetcher) Connect(ctx context.Context) error {
	clientConfig, err := f.config.buildClientConfig()
	if err != nil {
		return migrate.NewPermanentError("failed to build ssh config", err).
			WithOperation("connect")
	}

	connChan := make(chan *ssh.Client, 1)
	errChan := make(chan error, 1)
	go func() {
		client, dialErr := ssh.Dial("tcp", f.config.Address(), clientConfig)
		if dialErr != nil {
			errChan <- dialErr
			return
		}
		connChan <- client
	}()

	select {
	case <-ctx.Done():
		return migrate.NewTransientError("connection cancelled", ctx.Err()).
			WithOperation("connect")
	case dialErr := <-errChan:
		return migrate.NewTransientError(
			fmt.Sprintf("failed to connect to %s", f.config.Address()), dialErr).
			WithOperation("connect")
	case client := <-connChan:
		f.sshClient = client
	}

	sftpClient, err := sftp.NewClient(f.sshClient)
	if err != nil {
		_ = f.sshClient.Close()
		f.sshClient = nil
		return migrate.NewTransientError("failed to open sftp session", err).
			WithOperation("connect")
	}
	f.sftpClient = sftpClient

	f.log.Infof("connected to %s", f.config.Address())
	return nil
}

// Close tears down the sessions.
func (f *Fetcher) Close() error {
	var firstErr error
	if f.sftpClient != nil {
		firstErr = f.sftpClient.Close()
		f.sftpClient = nil
	}
	if f.sshClient != nil {
		if err := f.sshClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		f.sshClient = nil
	}
	return firstErr
}

// FetchLatest finds the newest file under remoteDir whose name matches
// the suffix (e.g. ".bpmn" or ".zip") and downloads it into localDir.
// It returns the local path.
func (f *Fetcher) FetchLatest(ctx context.Context, remoteDir, suffix, localDir string) (string, error) {
	if f.sftpClient == nil {
		return "", migrate.NewPermanentError("not connected", nil).WithOperation("fetch")
	}

	entries, err := f.sftpClient.ReadDir(remoteDir)
	if err != nil {
		return "", migrate.NewTransientError(
			fmt.Sprintf("failed to list %s", remoteDir), err).
			WithOperation("fetch")
	}

	var candidates []os.FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return "", migrate.NewPermanentError(
			fmt.Sprintf("no %s files under %s", suffix, remoteDir), nil).
			WithOperation("fetch")
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ModTime().After(candidates[j].ModTime())
	})

	newest := candidates[0]
	remotePath := path.Join(remoteDir, newest.Name())
	localPath := filepath.Join(localDir, newest.Name())

	if err := f.download(ctx, remotePath, localPath); err != nil {
		return "", err
	}

	f.log.Infof("downloaded %s (%d bytes)", remotePath, newest.Size())
	return localPath, nil
}

// FetchDir mirrors every file matching the suffix from remoteDir into
// localDir, flat. It returns the local paths.
func (f *Fetcher) FetchDir(ctx context.Context, remoteDir, suffix, localDir string) ([]string, error) {
	if f.sftpClient == nil {
		return nil, migrate.NewPermanentError("not connected", nil).WithOperation("fetch")
	}

	walker := f.sftpClient.Walk(remoteDir)
	var local []string
	for walker.Step() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := walker.Err(); err != nil {
			return nil, migrate.NewTransientError(
				fmt.Sprintf("failed to walk %s", remoteDir), err).
				WithOperation("fetch")
		}
		stat := walker.Stat()
		if stat.IsDir() || !strings.HasSuffix(stat.Name(), suffix) {
			continue
		}
		localPath := filepath.Join(localDir, stat.Name())
		if err := f.download(ctx, walker.Path(), localPath); err != nil {
			return nil, err
		}
		local = append(local, localPath)
	}

	f.log.Infof("downloaded %d files from %s", len(local), remoteDir)
	return local, nil
}

func (f *Fetcher) download(ctx context.Context, remotePath, localPath string) error {
	src, err := f.sftpClient.Open(remotePath)
	if err != nil {
		return migrate.NewTransientError(
			fmt.Sprintf("failed to open %s", remotePath), err).
			WithOperation("download")
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return migrate.NewTransientError(
			fmt.Sprintf("failed to stat %s", remotePath), err).
			WithOperation("download")
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return migrate.NewPermanentError("failed to create local directory", err).
			WithOperation("download")
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return migrate.NewPermanentError(
			fmt.Sprintf("failed to create %s", localPath), err).
			WithOperation("download")
	}
	defer dst.Close()

	if err := copyVerified(dst, contextReader{ctx: ctx, r: src}, remotePath, info.Size()); err != nil {
		_ = os.Remove(localPath)
		return err
	}
	return nil
}

// copyVerified copies the remote file and checks the byte count
// against the size the server reported at open time.
func copyVerified(dst io.Writer, src io.Reader, remotePath string, want int64) error {
	n, err := io.Copy(dst, src)
	if err != nil {
		return migrate.NewTransientError(
			fmt.Sprintf("failed to download %s", remotePath), err).
			WithOperation("download")
	}
	if n != want {
		return migrate.NewTransientError(
			fmt.Sprintf("short download of %s: %d of %d bytes", remotePath, n, want), nil).
			WithOperation("download")
	}
	return nil
}

// contextReader aborts a copy when the context is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
