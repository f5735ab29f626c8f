package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"fallwatch/internal/config"
	"fallwatch/internal/logger"
	"fallwatch/internal/model"
)

// Publisher moves the detector's annotated output into the processed directory.
type Publisher struct {
	namer         *Namer
	transientRoot string
	logger        *logger.Logger
}

// NewPublisher creates a Publisher for the configured processed directory.
func NewPublisher(config *config.Config, logger *logger.Logger) (*Publisher, error) {
	namer, err := NewNamer(config.ProcessedDirectory, "processed")
	if err != nil {
		return nil, err
	}

	return &Publisher{
		namer:         namer,
		transientRoot: filepath.Clean(config.DetectorOutputDirectory),
		logger:        logger,
	}, nil
}

// Publish moves src into the processed directory under a fresh name and returns that name.
// The file exists at its new location when Publish returns.
func (p *Publisher) Publish(src string) (string, error) {
	if src == "" {
		return "", fmt.Errorf("%w: detector reported no annotated output", model.ErrPublishFailed)
	}
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("%w: annotated output %s: %v", model.ErrPublishFailed, src, err)
	}

	name, dst := p.namer.Next()

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("%w: failed to clear %s: %v", model.ErrPublishFailed, dst, err)
	}

	if err := moveFile(src, dst); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPublishFailed, err)
	}

	p.removeRunDir(filepath.Dir(src))
	p.logger.Info("Published %s", name)
	return name, nil
}

// removeRunDir drops an emptied per-run directory below the transient root.
func (p *Publisher) removeRunDir(dir string) {
	dir = filepath.Clean(dir)
	if dir == p.transientRoot || !strings.HasPrefix(dir, p.transientRoot+string(filepath.Separator)) {
		return
	}
	// Fails harmlessly when the run directory still holds files.
	os.Remove(dir)
}

// ResolveName joins a bare file name onto dir, rejecting anything with path elements.
func ResolveName(dir, name string) (string, bool) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return filepath.Join(dir, name), true
}

// moveFile renames src to dst, falling back to copy and delete across filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	return os.Remove(src)
}
