package layers

import (
	"strings"

	"github.com/opencontainers/go-digest"

	cacheerrors "github.com/bibin-skaria/layercache/internal/errors"
)

// Payload returns the hex part of an algorithm:hex digest
func Payload(d digest.Digest) (string, error) {
	if !strings.Contains(string(d), ":") {
		return "", cacheerrors.NewMalformedDigestError(string(d), "missing algorithm separator")
	}
	hex := d.Encoded()
	if hex == "" {
		return "", cacheerrors.NewMalformedDigestError(string(d), "empty hex payload")
	}
	return hex, nil
}

// BucketKey returns the cache bucket name for a digest: the first
// BucketPrefixLen characters of its payload. Digests sharing that prefix
// share a bucket.
func BucketKey(d digest.Digest) (string, error) {
	hex, err := Payload(d)
	if err != nil {
		return "", err
	}
	if len(hex) < BucketPrefixLen {
		return "", cacheerrors.NewMalformedDigestError(string(d), "hex payload shorter than bucket prefix")
	}
	return hex[:BucketPrefixLen], nil
}

// Deduplicate returns the digests of layers with duplicate payloads removed,
// keeping first-seen order
func Deduplicate(layers []LayerReference) ([]digest.Digest, error) {
	seen := make(map[string]struct{}, len(layers))
	unique := make([]digest.Digest, 0, len(layers))

	for _, layer := range layers {
		hex, err := Payload(layer.Digest)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[hex]; ok {
			continue
		}
		seen[hex] = struct{}{}
		unique = append(unique, layer.Digest)
	}

	return unique, nil
}
