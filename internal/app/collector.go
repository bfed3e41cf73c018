package app

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
	"exifai/internal/logging"
)

// Collector expands the paths given on the command line into the image list
// of a batch.
type Collector struct {
	FS     FileSystem
	Logger *zap.Logger
}

// Collect walks directories recursively, keeping files with a recognized
// extension. Explicit file arguments are kept as given so a bad one fails as
// its own result. The list is sorted and free of duplicates.
func (c *Collector) Collect(ctx context.Context, roots []string) ([]string, error) {
	if c.FS == nil {
		return nil, appErrors.Wrap(appErrors.Internal, "collect", "", errMissingPort("FS"))
	}
	defer logging.Measure(c.Logger, "collecting images")()

	seen := make(map[string]bool)
	var paths []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := c.FS.Stat(root)
		if err != nil || !info.IsDir() {
			add(root)
			continue
		}

		skipped := 0
		err = c.FS.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if domain.IsSupportedExtension(filepath.Ext(d.Name())) {
				add(path)
			} else {
				skipped++
			}
			return nil
		})
		if err != nil {
			return nil, appErrors.Wrap(appErrors.NotFound, "collect", root, err)
		}
		if c.Logger != nil {
			c.Logger.Debug("scanned directory",
				zap.String("root", root), zap.Int("skipped", skipped))
		}
	}

	sort.Strings(paths)
	return paths, nil
}

type errMissingPort string

func (e errMissingPort) Error() string {
	return "missing dependency: " + string(e)
}
