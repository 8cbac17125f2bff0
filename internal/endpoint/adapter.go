// Package endpoint translates Endpoint records into concrete invocations of
// the external copy engine: building its config file, constructing
// per-kind URLs, testing reachability, listing files, and driving copies.
package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/model"
)

// Adapter implements the Endpoint Adapter (C2). One Adapter is shared by
// every worker in a process: it owns a single config file on disk that is
// rewritten whenever a new endpoint is configured.
type Adapter struct {
	binaryPath string
	configPath string
	bwLimit    string
	logger     *zap.Logger

	mu       sync.Mutex
	sections map[string]string // endpoint name -> rendered INI section
}

// Options configures a new Adapter.
type Options struct {
	BinaryPath string
	ConfigDir  string
	BwLimit    string
}

// New creates an Adapter whose config file lives under opts.ConfigDir.
func New(opts Options) (*Adapter, error) {
	if err := os.MkdirAll(opts.ConfigDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rclone config dir: %w", err)
	}
	return &Adapter{
		binaryPath: opts.BinaryPath,
		configPath: filepath.Join(opts.ConfigDir, "transferd.conf"),
		bwLimit:    opts.BwLimit,
		logger:     logger.Named("endpoint"),
		sections:   map[string]string{},
	}, nil
}

// Configure ensures the adapter-local config reflects ep. LOCAL endpoints
// (and kinds with no section builder) need no section; S3, SMB and SFTP
// sections get rewritten into the shared config file. Configure failures are fatal to the enclosing job (spec: a bad
// endpoint config must not silently degrade a transfer).
func (a *Adapter) Configure(ep model.Endpoint) error {
	section := buildConfigSection(ep, a.binaryPath, a.logger)

	a.mu.Lock()
	defer a.mu.Unlock()

	if section == "" {
		delete(a.sections, ep.Name)
	} else {
		a.sections[ep.Name] = section
	}
	return a.writeConfigLocked()
}

func (a *Adapter) writeConfigLocked() error {
	var content string
	for _, section := range a.sections {
		content += section
	}
	if err := os.WriteFile(a.configPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write engine config: %w", err)
	}
	return nil
}

// TestReachable reports whether ep can currently be reached: for LOCAL it
// checks directory existence; for remote kinds it performs a minimal list
// against the endpoint's root. It only returns the result: it records no
// state on the endpoint and does not touch jobs in flight against it.
func (a *Adapter) TestReachable(ctx context.Context, ep model.Endpoint) bool {
	if ep.Kind == model.EndpointKindLocal {
		base := ep.Config.BasePath
		if base == "" {
			base = "/"
		}
		info, err := os.Stat(base)
		return err == nil && info.IsDir()
	}

	_, err := a.ListFiles(ctx, ep, "", "*")
	return err == nil
}

// FileEntry is one non-directory entry returned by ListFiles.
type FileEntry struct {
	Name  string
	Path  string
	Size  int64
	IsDir bool
}

type lsjsonEntry struct {
	Name  string `json:"Name"`
	Path  string `json:"Path"`
	Size  int64  `json:"Size"`
	IsDir bool   `json:"IsDir"`
}

// ListFiles enumerates the non-directory entries under basePath on ep that
// match glob, returning an empty (not nil-error) list when the engine
// produces no output.
func (a *Adapter) ListFiles(ctx context.Context, ep model.Endpoint, basePath, glob string) ([]FileEntry, error) {
	target := BuildURL(ep, basePath)
	args := []string{"lsjson", "--config", a.configPath}
	if glob != "" && glob != "*" {
		args = append(args, "--include", glob)
	}
	args = append(args, target)

	out, stderr, err := a.runAndCapture(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %s", target, stderr)
	}
	if len(out) == 0 {
		return []FileEntry{}, nil
	}

	var entries []lsjsonEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse listing for %s: %w", target, err)
	}

	result := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		p := e.Path
		if p == "" {
			p = e.Name
		}
		result = append(result, FileEntry{Name: e.Name, Path: p, Size: e.Size})
	}
	return result, nil
}

// CopyHandle is an opaque reference to a running copy/move invocation.
type CopyHandle struct {
	inner *copyHandle
}

// StartCopy launches a copy (delete_source=false) or move
// (delete_source=true) from sourceURL to destURL with progress streaming,
// checksum verification, and per-second statistics. When exactDest is true,
// destURL names the exact destination file (used when template expansion
// renames the file); otherwise destURL is a directory and the engine
// preserves the source's basename.
func (a *Adapter) StartCopy(ctx context.Context, sourceURL, destURL string, deleteSource, exactDest bool) (*CopyHandle, error) {
	verb := "copy"
	if exactDest {
		verb = "copyto"
	}
	if deleteSource {
		if exactDest {
			verb = "moveto"
		} else {
			verb = "move"
		}
	}

	args := []string{
		verb,
		"--config", a.configPath,
		"--stats", "1s",
		"--stats-one-line",
		"--use-json-log",
		"--checksum",
	}
	if a.bwLimit != "" {
		args = append(args, "--bwlimit", a.bwLimit)
	}
	args = append(args, sourceURL, destURL)

	h, err := a.startSubprocess(ctx, args)
	if err != nil {
		return nil, err
	}
	return &CopyHandle{inner: h}, nil
}

// PollProgress reads the latest progress sample for handle, non-blocking.
// done reports whether the engine has exited; err is set only when it
// exited non-zero, and carries its last stderr lines as the message.
func (a *Adapter) PollProgress(ctx context.Context, handle *CopyHandle) (progress *Progress, done bool, err error) {
	return handle.inner.poll(ctx, a.logger)
}

// CancelCopy terminates a running copy's subprocess.
func (a *Adapter) CancelCopy(handle *CopyHandle) {
	handle.inner.cancel()
}

// runAndCapture runs the engine to completion (used for quick commands like
// lsjson, not long copies) and returns stdout, or the last stderr lines on
// failure. Stdout must be drained concurrently with Wait: the stdlib closes
// the pipe only once Wait sees the process exit and all reads finish.
func (a *Adapter) runAndCapture(ctx context.Context, args []string) ([]byte, string, error) {
	h, err := a.startSubprocess(ctx, args)
	if err != nil {
		return nil, "", err
	}

	outCh := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(h.stdout)
		outCh <- data
	}()

	werr := <-h.done
	out := <-outCh

	if werr != nil {
		return nil, h.stderr.lastLines(), werr
	}
	return out, "", nil
}
