package layers

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	cacheerrors "github.com/bibin-skaria/layercache/internal/errors"
)

// ExtractorConfig holds configuration for blob extraction
type ExtractorConfig struct {
	// Locator resolves blob archive paths. Defaults to TwoLevelLocator.
	Locator BlobLocator
	// Patterns are matched as substrings of entry paths. Defaults to
	// DefaultPatterns.
	Patterns []string
	// Include overrides Patterns when set.
	Include InclusionPredicate
	// ContinueOnOpenError logs archives that cannot be opened and moves on
	// to the next blob instead of aborting the batch.
	ContinueOnOpenError bool
}

// DefaultExtractorConfig returns the configuration used by ExtractLayers
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Locator:  TwoLevelLocator{},
		Patterns: DefaultPatterns(),
	}
}

// Extractor materializes layer blobs into cache buckets. Blobs are processed
// one at a time; concurrent calls on the same Extractor share in-flight work
// per bucket, but nothing guards a bucket against other processes.
type Extractor struct {
	log      Logger
	config   ExtractorConfig
	include  InclusionPredicate
	inflight singleflight.Group
}

// NewExtractor creates an Extractor logging to log
func NewExtractor(log Logger, config ExtractorConfig) *Extractor {
	if config.Locator == nil {
		config.Locator = TwoLevelLocator{}
	}
	if len(config.Patterns) == 0 {
		config.Patterns = DefaultPatterns()
	}
	include := config.Include
	if include == nil {
		include = ContainsAny(config.Patterns...)
	}

	return &Extractor{
		log:     log,
		config:  config,
		include: include,
	}
}

// ExtractLayers runs a default Extractor over layers
func ExtractLayers(ctx context.Context, log Logger, blobsRoot, cacheRoot string, layers []LayerReference) (*Report, error) {
	return NewExtractor(log, DefaultExtractorConfig()).ExtractLayers(ctx, blobsRoot, cacheRoot, layers)
}

// ExtractLayers deduplicates layers and unpacks every blob containing an
// entry accepted by the inclusion predicate into cacheRoot/<bucket key>.
// Existing buckets are trusted and left untouched. Entry failures are logged
// and recorded in the report; a malformed digest, an unopenable archive
// (unless ContinueOnOpenError is set) or a cancelled context stop the batch.
func (e *Extractor) ExtractLayers(ctx context.Context, blobsRoot, cacheRoot string, layers []LayerReference) (*Report, error) {
	unique, err := Deduplicate(layers)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(unique))
	for i, d := range unique {
		if keys[i], err = BucketKey(d); err != nil {
			return nil, err
		}
	}

	report := &Report{}
	for i, d := range unique {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := e.extractBlob(ctx, blobsRoot, cacheRoot, d, keys[i])
		report.add(res)
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

func (e *Extractor) extractBlob(ctx context.Context, blobsRoot, cacheRoot string, d digest.Digest, key string) (BlobResult, error) {
	bucket := filepath.Join(cacheRoot, key)
	e.log.Tracef("cache file %s", bucket)

	for {
		v, err, shared := e.inflight.Do(bucket, func() (interface{}, error) {
			return e.fillBucket(ctx, blobsRoot, bucket, d, key)
		})

		// A shared fill runs under the context of the call that started it.
		// Its cancellation is not ours to report while our context is live.
		if shared && isContextError(err) && ctx.Err() == nil {
			e.log.Debugf("concurrent fill of bucket %s was cancelled, retrying", bucket)
			continue
		}
		if shared {
			e.log.Debugf("bucket %s filled by concurrent call", bucket)
		}

		res := v.(BlobResult)
		res.Digest = d
		return res, err
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Extractor) fillBucket(ctx context.Context, blobsRoot, bucket string, d digest.Digest, key string) (BlobResult, error) {
	res := BlobResult{Digest: d, Bucket: bucket}

	if _, err := os.Stat(bucket); err == nil {
		e.log.Infof("cache exists %s", bucket)
		res.Outcome = OutcomeCached
		return res, nil
	}

	archivePath := e.config.Locator.Locate(blobsRoot, d.Encoded())
	e.log.Tracef("blobs file %s", archivePath)

	matched, err := e.scan(ctx, archivePath)
	if err != nil {
		return e.failed(ctx, res, key, err, OutcomeSkipped)
	}
	if !matched {
		e.log.Debugf("no entries of interest in blob %s", key)
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	e.log.Infof("untarring file %s", key)
	if err := e.unpack(ctx, archivePath, bucket); err != nil {
		return e.failed(ctx, res, key, err, OutcomePartial)
	}

	res.Outcome = OutcomeExtracted
	return res, nil
}

// failed applies the error policy for one blob. Recoverable errors are
// logged and recorded with outcome so the batch moves on. Open failures are
// returned unless ContinueOnOpenError is set; anything else is returned.
func (e *Extractor) failed(ctx context.Context, res BlobResult, key string, err error, outcome Outcome) (BlobResult, error) {
	res.Err = err

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}

	switch {
	case errors.Is(err, cacheerrors.ErrArchiveOpen):
		res.Outcome = OutcomeUnopenable
		if !e.config.ContinueOnOpenError {
			return res, err
		}
		e.log.Errorf("skipping blob %s: %v", key, err)
		return res, nil

	case cacheerrors.IsRecoverable(err):
		e.log.Warnf("skipping this error : %v", err)
		res.Outcome = outcome
		return res, nil

	default:
		res.Outcome = outcome
		return res, err
	}
}

// scan reports whether any entry of the archive at path is accepted by the
// inclusion predicate, stopping at the first match.
func (e *Extractor) scan(ctx context.Context, path string) (bool, error) {
	a, err := openArchive(path)
	if err != nil {
		return false, err
	}
	defer a.Close()

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		header, err := a.tr.Next()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, cacheerrors.NewArchiveEntryError(path, "", err)
		}

		if e.include(header.Name) {
			e.log.Tracef("matched entry %s", header.Name)
			return true, nil
		}
	}
}

// unpack extracts every entry of the archive at path into bucket from a
// fresh stream. It stops at the first failing entry.
func (e *Extractor) unpack(ctx context.Context, path, bucket string) error {
	a, err := openArchive(path)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := os.MkdirAll(bucket, 0o755); err != nil {
		return cacheerrors.NewArchiveEntryError(path, bucket, err)
	}
	root, err := filepath.EvalSymlinks(bucket)
	if err != nil {
		return cacheerrors.NewArchiveEntryError(path, bucket, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := a.tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return cacheerrors.NewArchiveEntryError(path, "", err)
		}

		if err := e.unpackEntry(a.tr, header, root); err != nil {
			return cacheerrors.NewArchiveEntryError(path, header.Name, err)
		}
	}
}

func (e *Extractor) unpackEntry(r io.Reader, header *tar.Header, root string) error {
	name, ok := entryPath(header.Name)
	if !ok {
		e.log.Debugf("skipping entry outside bucket: %s", header.Name)
		return nil
	}
	if name == "" {
		return nil
	}
	target := filepath.Join(root, name)

	switch header.Typeflag {
	case tar.TypeDir, tar.TypeReg, tar.TypeSymlink, tar.TypeLink:
	default:
		e.log.Debugf("skipping entry %s with type %q", header.Name, header.Typeflag)
		return nil
	}

	if err := ensureWithin(root, filepath.Dir(target)); err != nil {
		return err
	}

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0o755)

	case tar.TypeReg:
		if err := prepareTarget(target); err != nil {
			return err
		}
		return writeFile(target, r, header)

	case tar.TypeSymlink:
		if err := prepareTarget(target); err != nil {
			return err
		}
		return os.Symlink(header.Linkname, target)

	default: // tar.TypeLink
		source, ok := entryPath(header.Linkname)
		if !ok || source == "" {
			return fmt.Errorf("hard link target %q is outside the bucket", header.Linkname)
		}
		if err := prepareTarget(target); err != nil {
			return err
		}
		return os.Link(filepath.Join(root, source), target)
	}
}

// entryPath turns an archive entry name into a relative path. Leading
// slashes and "." components are dropped; names with ".." are rejected.
func entryPath(name string) (string, bool) {
	var parts []string
	for _, part := range strings.Split(name, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", false
		}
		parts = append(parts, part)
	}
	return filepath.Join(parts...), true
}

// ensureWithin fails if dir, with symlinks in its existing ancestors
// resolved, lies outside root. root must already be resolved.
func ensureWithin(root, dir string) error {
	existing := dir
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s escapes the bucket", dir)
	}
	return nil
}

// prepareTarget creates the parent directory of target and removes any
// non-directory already at target, so symlinks are replaced, not followed.
func prepareTarget(target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if fi, err := os.Lstat(target); err == nil && !fi.IsDir() {
		return os.Remove(target)
	}
	return nil
}

func writeFile(target string, r io.Reader, header *tar.Header) error {
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, header.FileInfo().Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return os.Chtimes(target, header.ModTime, header.ModTime)
}

// archive is one pass over a gzip-compressed tar file
type archive struct {
	file *os.File
	gz   *gzip.Reader
	tr   *tar.Reader
}

func openArchive(path string) (*archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, cacheerrors.NewArchiveOpenError(path, err)
	}

	gz, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, cacheerrors.NewArchiveOpenError(path, err)
	}

	return &archive{
		file: file,
		gz:   gz,
		tr:   tar.NewReader(gz),
	}, nil
}

func (a *archive) Close() error {
	gzErr := a.gz.Close()
	if err := a.file.Close(); err != nil {
		return err
	}
	return gzErr
}
