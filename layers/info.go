package layers

import (
	"fmt"
	"os"
	"path/filepath"
)

// CacheInfo summarizes the contents of a cache root
type CacheInfo struct {
	Buckets    int   `json:"buckets"`
	TotalFiles int   `json:"total_files"`
	TotalSize  int64 `json:"total_size"`
}

// Info walks cacheRoot and counts buckets, regular files and their size.
// A missing cache root is an empty cache.
func Info(cacheRoot string) (*CacheInfo, error) {
	info := &CacheInfo{}

	buckets, err := os.ReadDir(cacheRoot)
	if os.IsNotExist(err) {
		return info, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache root: %w", err)
	}

	for _, bucket := range buckets {
		if !bucket.IsDir() {
			continue
		}
		info.Buckets++

		err := filepath.Walk(filepath.Join(cacheRoot, bucket.Name()), func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if fi.Mode().IsRegular() {
				info.TotalFiles++
				info.TotalSize += fi.Size()
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to calculate cache info: %w", err)
		}
	}

	return info, nil
}
