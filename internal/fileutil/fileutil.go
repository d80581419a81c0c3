// Package fileutil walks library roots and collects the video files a scan
// will consider.
package fileutil

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dupelens/internal/identity"
	"dupelens/internal/logging"
)

// PathFilter decides whether a regular file belongs in the scan set.
type PathFilter func(path string) bool

// CollectFiles walks each root and returns the identities of all regular
// files accepted by the filter, sorted by path and deduplicated. Unreadable
// subtrees are logged and skipped; a root that does not exist is an error.
func CollectFiles(roots []string, filter PathFilter, logger *slog.Logger) ([]identity.FileIdentity, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "walk")

	seen := make(map[string]struct{})
	var files []identity.FileIdentity

	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %q: %w", root, err)
		}
		info, err := os.Stat(absRoot)
		if err != nil {
			return nil, fmt.Errorf("stat root %q: %w", root, err)
		}
		if !info.IsDir() {
			if id, ok := acceptFile(absRoot, info, filter); ok {
				addFile(&files, seen, id)
			}
			continue
		}

		walkErr := filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("subtree skipped", slog.String(logging.FieldPath, path), logging.Error(err))
				if entry != nil && entry.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if entry.IsDir() || !entry.Type().IsRegular() {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				logger.Warn("file skipped", slog.String(logging.FieldPath, path), logging.Error(err))
				return nil
			}
			if id, ok := acceptFile(path, info, filter); ok {
				addFile(&files, seen, id)
			}
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("walk root %q: %w", root, walkErr)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func acceptFile(path string, info fs.FileInfo, filter PathFilter) (identity.FileIdentity, bool) {
	if !info.Mode().IsRegular() {
		return identity.FileIdentity{}, false
	}
	if filter != nil && !filter(path) {
		return identity.FileIdentity{}, false
	}
	return identity.FileIdentity{Path: path, Size: info.Size(), ModTime: info.ModTime()}, true
}

func addFile(files *[]identity.FileIdentity, seen map[string]struct{}, id identity.FileIdentity) {
	if _, dup := seen[id.Path]; dup {
		return
	}
	seen[id.Path] = struct{}{}
	*files = append(*files, id)
}
