package manifest

import (
	"fmt"

	"github.com/bibin-skaria/layercache/layers"
)

// Media types accepted by LoadLayers
const (
	MediaTypeDockerManifestV1       = "application/vnd.docker.distribution.manifest.v1+json"
	MediaTypeDockerManifestV1Signed = "application/vnd.docker.distribution.manifest.v1+prettyjws"
	MediaTypeDockerManifest         = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeOCIManifest            = "application/vnd.oci.image.manifest.v1+json"
)

// ManifestConfig is the config descriptor of a manifest
type ManifestConfig struct {
	MediaType string `json:"mediaType"`
	Size      int64  `json:"size"`
	Digest    string `json:"digest"`
}

// History is one v1 compatibility history entry
type History struct {
	V1Compatibility string `json:"v1Compatibility"`
}

// ManifestSchema is a schema v1 image manifest as served for operator
// index images. Layers are listed in fsLayers.
type ManifestSchema struct {
	Tag           string                  `json:"tag,omitempty"`
	Name          string                  `json:"name,omitempty"`
	Architecture  string                  `json:"architecture,omitempty"`
	SchemaVersion int64                   `json:"schemaVersion,omitempty"`
	Config        *ManifestConfig         `json:"config,omitempty"`
	History       []History               `json:"history,omitempty"`
	FsLayers      []layers.LayerReference `json:"fsLayers"`
}

// LayerReferences returns the layers of the manifest in manifest order
func (m *ManifestSchema) LayerReferences() []layers.LayerReference {
	out := make([]layers.LayerReference, len(m.FsLayers))
	copy(out, m.FsLayers)
	return out
}

// ImageReference identifies a catalog image as registry/namespace/name:version
type ImageReference struct {
	Registry  string `json:"registry"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Version   string `json:"version"`
}

// String returns the reference in registry/namespace/name:version form
func (r ImageReference) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s/%s:%s", r.Registry, r.Name, r.Version)
	}
	return fmt.Sprintf("%s/%s/%s:%s", r.Registry, r.Namespace, r.Name, r.Version)
}
