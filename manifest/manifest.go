package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/opencontainers/go-digest"

	cacheerrors "github.com/bibin-skaria/layercache/internal/errors"
	"github.com/bibin-skaria/layercache/layers"
)

// ParseJSONManifest parses a schema v1 manifest
func ParseJSONManifest(data []byte) (*ManifestSchema, error) {
	var m ManifestSchema
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, cacheerrors.NewManifestError("parse manifest", "invalid schema v1 manifest", err)
	}
	return &m, nil
}

// ParseOCIManifest parses an OCI or Docker v2 image manifest and returns its
// layers
func ParseOCIManifest(data []byte) ([]layers.LayerReference, error) {
	m, err := v1.ParseManifest(bytes.NewReader(data))
	if err != nil {
		return nil, cacheerrors.NewManifestError("parse manifest", "invalid image manifest", err)
	}

	refs := make([]layers.LayerReference, 0, len(m.Layers))
	for _, desc := range m.Layers {
		refs = append(refs, layers.LayerReference{
			Digest: digest.Digest(desc.Digest.String()),
			Size:   desc.Size,
		})
	}
	return refs, nil
}

// LoadLayers reads a manifest file and returns the layers it references.
// Files with an fsLayers list are read as schema v1, anything else as an
// OCI or Docker v2 manifest.
func LoadLayers(file string) ([]layers.LayerReference, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, cacheerrors.NewManifestError("read manifest", file, err)
	}

	var probe struct {
		MediaType string            `json:"mediaType"`
		FsLayers  []json.RawMessage `json:"fsLayers"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, cacheerrors.NewManifestError("parse manifest", file, err)
	}

	switch {
	case len(probe.FsLayers) > 0,
		probe.MediaType == MediaTypeDockerManifestV1,
		probe.MediaType == MediaTypeDockerManifestV1Signed:
		m, err := ParseJSONManifest(data)
		if err != nil {
			return nil, err
		}
		return m.LayerReferences(), nil
	default:
		return ParseOCIManifest(data)
	}
}

// ParseImageIndex turns catalog image references such as
// registry.redhat.io/redhat/redhat-operator-index:v4.12 into
// ImageReferences, keeping input order. The registry and tag must be
// explicit; nothing is defaulted to Docker Hub or latest.
func ParseImageIndex(log layers.Logger, catalogs []string) ([]ImageReference, error) {
	refs := make([]ImageReference, 0, len(catalogs))
	for _, catalog := range catalogs {
		log.Tracef("catalog %s", catalog)

		tag, err := name.NewTag(catalog, name.StrictValidation)
		if err != nil {
			return nil, cacheerrors.NewManifestError("parse catalog", catalog, err)
		}

		repo := tag.RepositoryStr()
		ref := ImageReference{
			Registry: tag.RegistryStr(),
			Name:     path.Base(repo),
			Version:  tag.TagStr(),
		}
		if ns := path.Dir(repo); ns != "." {
			ref.Namespace = ns
		}

		log.Debugf("image reference %+v", ref)
		refs = append(refs, ref)
	}
	return refs, nil
}

// ManifestURL returns the registry v2 API URL of the reference's manifest
func ManifestURL(ref ImageReference) string {
	return fmt.Sprintf("https://%s/v2/%s/manifests/%s",
		ref.Registry, path.Join(ref.Namespace, ref.Name), ref.Version)
}

// CacheDir returns dir/image/version[/arch]/cache, the cache root for one
// catalog image
func CacheDir(dir, image, version, arch string) string {
	return filepath.Join(imageDir(dir, image, version, arch), "cache")
}

// ManifestJSONFile returns dir/image/version[/arch]/manifest.json
func ManifestJSONFile(dir, image, version, arch string) string {
	return filepath.Join(imageDir(dir, image, version, arch), "manifest.json")
}

func imageDir(dir, image, version, arch string) string {
	if arch == "" {
		return filepath.Join(dir, image, version)
	}
	return filepath.Join(dir, image, version, arch)
}
