package layers

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	cacheerrors "github.com/bibin-skaria/layercache/internal/errors"
)

// FindNamedSubpath searches the grandchildren of root (the entries one level
// below each bucket) for the first path containing fragment. Nothing deeper
// is searched. The walk follows directory listing order.
func FindNamedSubpath(ctx context.Context, log Logger, root, fragment string) (string, bool) {
	buckets, err := os.ReadDir(root)
	if err != nil {
		log.Warnf("%v", cacheerrors.NewDirectoryReadError(root, err))
		return "", false
	}

	for _, bucket := range buckets {
		if ctx.Err() != nil {
			return "", false
		}
		if !bucket.IsDir() && bucket.Type()&os.ModeSymlink == 0 {
			continue
		}

		dir := filepath.Join(root, bucket.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Warnf("%v", cacheerrors.NewDirectoryReadError(dir, err))
			continue
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if strings.Contains(path, fragment) {
				log.Debugf("found %s for %q", path, fragment)
				return path, true
			}
		}
	}

	return "", false
}
