package layers

import (
	"strings"

	"github.com/opencontainers/go-digest"
)

// BucketPrefixLen is the number of hex characters naming a cache bucket.
// Other tools read the cache with this layout, so it must not change.
const BucketPrefixLen = 6

// Default inclusion patterns: a blob is extracted only if one of its entry
// paths contains one of these.
const (
	PatternConfigs          = "configs/"
	PatternReleaseManifests = "release-manifests/"
)

// DefaultPatterns returns the default inclusion patterns
func DefaultPatterns() []string {
	return []string{PatternConfigs, PatternReleaseManifests}
}

// LayerReference points at one layer blob of an image
type LayerReference struct {
	Digest      digest.Digest `json:"blobSum"`
	OriginalRef string        `json:"originalRef,omitempty"`
	Size        int64         `json:"size,omitempty"`
}

// Logger is the logging sink used by the cache. *logrus.Logger and
// *logrus.Entry satisfy it.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// InclusionPredicate decides whether an archive entry path makes its blob
// worth extracting
type InclusionPredicate func(path string) bool

// ContainsAny returns a predicate matching paths that contain any pattern
func ContainsAny(patterns ...string) InclusionPredicate {
	return func(path string) bool {
		for _, p := range patterns {
			if strings.Contains(path, p) {
				return true
			}
		}
		return false
	}
}

// Outcome describes what ExtractLayers did with one blob
type Outcome string

const (
	OutcomeCached     Outcome = "cached"
	OutcomeExtracted  Outcome = "extracted"
	OutcomePartial    Outcome = "partial"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeUnopenable Outcome = "unopenable"
)

// BlobResult is the per-blob entry of a Report
type BlobResult struct {
	Digest  digest.Digest `json:"digest"`
	Bucket  string        `json:"bucket"`
	Outcome Outcome       `json:"outcome"`
	Err     error         `json:"-"`
}

// Report summarizes one ExtractLayers call, in processing order
type Report struct {
	Results []BlobResult `json:"results"`
}

// Count returns the number of blobs with the given outcome
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

func (r *Report) add(res BlobResult) {
	r.Results = append(r.Results, res)
}
