package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"clipfind/internal/port"
)

// Fingerprint modes. The fast proxy (size + mtime) misses a file rewritten
// with both preserved; sha256 reads every byte but catches it.
const (
	FingerprintFast   = "fast"
	FingerprintSHA256 = "sha256"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// Scanner walks folder sets and filters to supported image files.
type Scanner struct {
	excludes []string
	mode     string
}

func NewScanner(excludes []string, fingerprintMode string) *Scanner {
	if fingerprintMode == "" {
		fingerprintMode = FingerprintFast
	}
	return &Scanner{
		excludes: excludes,
		mode:     fingerprintMode,
	}
}

// Scan walks every folder in order and returns the image files beneath
// them, deduplicated across overlapping folders and sorted by path.
func (s *Scanner) Scan(folders []string) ([]port.FileInfo, error) {
	seen := make(map[string]bool)
	var files []port.FileInfo

	for _, folder := range folders {
		root, err := filepath.Abs(folder)
		if err != nil {
			return nil, err
		}

		err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			relPath, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}

			if info.IsDir() {
				if s.shouldExclude(relPath + "/") {
					return filepath.SkipDir
				}
				return nil
			}

			if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if s.shouldExclude(relPath) || seen[path] {
				return nil
			}

			seen[path] = true
			files = append(files, port.FileInfo{
				Path:    path,
				Size:    info.Size(),
				ModTime: info.ModTime().UnixNano(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", folder, err)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// Fingerprint derives the change-detection value for a scanned file
// according to the configured mode.
func (s *Scanner) Fingerprint(fi port.FileInfo) (string, error) {
	if s.mode == FingerprintSHA256 {
		return hashFile(fi.Path)
	}
	return fmt.Sprintf("%d-%d", fi.Size, fi.ModTime), nil
}

func (s *Scanner) shouldExclude(relPath string) bool {
	for _, pattern := range s.excludes {
		matched, err := doublestar.Match(pattern, relPath)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadFile returns the raw bytes of an image file.
func ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
