package layers

import "path/filepath"

// BlobLocator maps a blob store root and a hex payload to the path of the
// compressed archive. The mapping must be stable across calls.
type BlobLocator interface {
	Locate(root, hex string) string
}

// LocatorFunc adapts a function to BlobLocator
type LocatorFunc func(root, hex string) string

// Locate calls f(root, hex)
func (f LocatorFunc) Locate(root, hex string) string {
	return f(root, hex)
}

// TwoLevelLocator stores blobs under a two character prefix directory:
// root/ac/ac202b...
type TwoLevelLocator struct{}

// Locate implements BlobLocator
func (TwoLevelLocator) Locate(root, hex string) string {
	if len(hex) < 2 {
		return filepath.Join(root, hex)
	}
	return filepath.Join(root, hex[:2], hex)
}

// FlatLocator stores every blob directly under root
type FlatLocator struct{}

// Locate implements BlobLocator
func (FlatLocator) Locate(root, hex string) string {
	return filepath.Join(root, hex)
}
