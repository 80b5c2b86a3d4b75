// Package layers implements a content-addressed extraction cache for
// container image layer blobs.
//
// Layer blobs are gzip-compressed tar archives stored in a blob store and
// referenced by digest. The cache unpacks only the blobs that carry content of
// interest and remembers them on disk so later runs skip them.
//
// # Blob Identity
//
// A digest has the form algorithm:hex. The hex payload locates the blob in
// the store, and its first BucketPrefixLen (6) characters name the cache
// bucket:
//
//	key, _ := BucketKey("sha256:ac202bdeadbeef") // "ac202b"
//
// Deduplicate removes layers whose payload was already seen, keeping the
// first occurrence.
//
// # Selective Extraction
//
// For each unique blob the extractor checks whether cacheRoot/<key> exists.
// An existing bucket is a cache hit and is never touched again. Otherwise the
// archive is scanned for an entry whose path contains one of the inclusion
// patterns (configs/ and release-manifests/ by default). On a match the
// archive is opened again and every entry is unpacked into the bucket; with
// no match nothing is written, so the blob is rescanned next time.
//
//	log := logging.New(logging.Options{Level: "info"})
//	report, err := layers.ExtractLayers(ctx, log, "working-dir/blobs-store", "working-dir/cache", refs)
//
// Entry failures during unpacking are logged as warnings and leave a partial
// bucket. An archive that cannot be opened aborts the batch unless
// ExtractorConfig.ContinueOnOpenError is set.
//
// # Tree Lookup
//
// FindNamedSubpath looks exactly two levels below a cache root for a path
// containing a name fragment:
//
//	dir, ok := layers.FindNamedSubpath(ctx, log, "working-dir/cache", "configs")
//
// # Thread Safety
//
// An Extractor may be shared between goroutines; concurrent misses on the same
// bucket are collapsed into one extraction. If the call that started a shared
// extraction is cancelled, the other callers retry under their own context.
// Nothing protects a bucket from another process writing the same cache root,
// so callers sharing a cache across processes must lock per bucket themselves.
package layers
