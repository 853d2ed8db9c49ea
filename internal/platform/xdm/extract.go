// Package xdm handles IHE XDM media packages: extracting submitted zip
// archives and reading the ebXML registry metadata that describes the
// documents inside them.
package xdm

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extract unpacks the zip archive at zipPath into destDir. Extraction is
// idempotent: when destDir already exists and contains at least one entry the
// archive is assumed to be extracted and nothing is done. The returned bool
// reports whether any extraction happened.
func Extract(zipPath, destDir string) (bool, error) {
	if entries, err := os.ReadDir(destDir); err == nil && len(entries) > 0 {
		return false, nil
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return false, fmt.Errorf("xdm: open archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return false, fmt.Errorf("xdm: create %s: %w", destDir, err)
	}

	for _, f := range zr.File {
		if err := extractFile(f, destDir); err != nil {
			return false, err
		}
	}
	return true, nil
}

func extractFile(f *zip.File, destDir string) error {
	// Reject entries that would escape the destination directory.
	target := filepath.Join(destDir, filepath.FromSlash(f.Name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("xdm: archive entry %q escapes destination", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("xdm: read archive entry %q: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("xdm: extract %q: %w", f.Name, err)
	}
	return dst.Close()
}
