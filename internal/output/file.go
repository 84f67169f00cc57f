package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSink writes appointments.json and appointments.md5 into a directory.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (f *FileSink) Name() string { return "file" }

func (f *FileSink) Publish(_ context.Context, art Artifact) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeAtomic(filepath.Join(f.dir, JSONName), art.JSON); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(f.dir, MD5Name), []byte(art.MD5))
}

// LastHash reads the digest of the previous publish; "" when none exists.
func (f *FileSink) LastHash(context.Context) (string, error) {
	sum, err := os.ReadFile(filepath.Join(f.dir, MD5Name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("output: read last hash: %w", err)
	}
	return strings.TrimSpace(string(sum)), nil
}

// ReadFiles returns the artifact last written to dir.
func ReadFiles(dir string) (Artifact, error) {
	data, err := os.ReadFile(filepath.Join(dir, JSONName))
	if err != nil {
		return Artifact{}, err
	}
	sum, err := os.ReadFile(filepath.Join(dir, MD5Name))
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{JSON: data, MD5: string(sum)}, nil
}

// writeAtomic replaces path through a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// StdoutSink prints the JSON document; logs stay on stderr.
type StdoutSink struct {
	w io.Writer
}

func NewStdoutSink(w io.Writer) *StdoutSink {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutSink{w: w}
}

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) Publish(_ context.Context, art Artifact) error {
	if _, err := s.w.Write(art.JSON); err != nil {
		return err
	}
	_, err := io.WriteString(s.w, "\n")
	return err
}
