// Package models fetches whisper ggml model files when they are missing.
package models

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// Models are published per-file, so the file name in the configured path
// doubles as the remote name.
const defaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// Ensure makes sure the model file at path exists, downloading it from the
// public whisper.cpp repository when it is missing. A present non-empty file
// is left untouched.
func Ensure(path string) error {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		slog.Debug("model already present", "path", path, "size_mb", info.Size()/(1024*1024))
		return nil
	}
	return download(defaultBaseURL+"/"+filepath.Base(path), path)
}

// download fetches url into dest, writing through a temp file so a partial
// download never masquerades as a usable model.
func download(url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating model dir: %w", err)
	}

	slog.Info("downloading model", "url", url, "dest", dest)
	fmt.Printf("Downloading %s...\n", filepath.Base(dest))

	resp, err := http.Get(url) //nolint:gosec // URL derives from the configured model name
	if err != nil {
		return fmt.Errorf("downloading model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model download failed: HTTP %d", resp.StatusCode)
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	pw := &progressWriter{writer: f, total: resp.ContentLength, label: filepath.Base(dest)}
	written, err := io.Copy(pw, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing model file: %w", err)
	}
	fmt.Printf("\nDownloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("moving model file: %w", err)
	}
	return nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Printf("\r%s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Printf("\r%s: %.1f MB downloaded", pw.label, float64(pw.written)/(1024*1024))
	}
	return n, err
}
