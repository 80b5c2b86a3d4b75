package layers

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var testModTime = time.Date(2023, 3, 14, 15, 9, 26, 0, time.UTC)

type testEntry struct {
	Name     string
	Body     string
	Typeflag byte
	Linkname string
	Mode     int64
}

func fileEntry(name, body string) testEntry {
	return testEntry{Name: name, Body: body, Typeflag: tar.TypeReg, Mode: 0o644}
}

func dirEntry(name string) testEntry {
	return testEntry{Name: name, Typeflag: tar.TypeDir, Mode: 0o755}
}

// tarBytes builds an uncompressed tar archive
func tarBytes(t *testing.T, entries []testEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		header := &tar.Header{
			Name:     e.Name,
			Typeflag: e.Typeflag,
			Linkname: e.Linkname,
			Mode:     e.Mode,
			ModTime:  testModTime,
		}
		if e.Typeflag == tar.TypeReg {
			header.Size = int64(len(e.Body))
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("WriteHeader(%s) failed: %v", e.Name, err)
		}
		if header.Size > 0 {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("Write(%s) failed: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer failed: %v", err)
	}
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("gzip write failed: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}
	return buf.Bytes()
}

// writeBlob stores data in the two-level blob store layout
func writeBlob(t *testing.T, blobsRoot, hex string, data []byte) string {
	t.Helper()

	path := TwoLevelLocator{}.Locate(blobsRoot, hex)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func writeLayer(t *testing.T, blobsRoot, hex string, entries ...testEntry) string {
	t.Helper()
	return writeBlob(t, blobsRoot, hex, gzipBytes(t, tarBytes(t, entries)))
}

func newTestLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	return logger, hook
}

func hasLog(hook *logtest.Hook, level logrus.Level) bool {
	for _, entry := range hook.AllEntries() {
		if entry.Level == level {
			return true
		}
	}
	return false
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) failed: %v", path, err)
	}
	return string(data)
}
