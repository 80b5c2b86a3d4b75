package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	cacheerrors "github.com/bibin-skaria/layercache/internal/errors"
)

var (
	layerA = "sha256:" + strings.Repeat("a", 64)
	layerB = "sha256:" + strings.Repeat("b", 64)
)

const schemaV1 = `{
  "schemaVersion": 1,
  "name": "redhat/redhat-operator-index",
  "tag": "v4.12",
  "architecture": "amd64",
  "fsLayers": [
    {"blobSum": "sha256:ac202bdeadbeef", "originalRef": "layer-a", "size": 112},
    {"blobSum": "sha256:bb2211aa00"},
    {"blobSum": "sha256:ac202bdeadbeef"}
  ],
  "history": [
    {"v1Compatibility": "{\"id\":\"1\"}"}
  ]
}`

func ociManifest() string {
	return `{
  "schemaVersion": 2,
  "mediaType": "application/vnd.oci.image.manifest.v1+json",
  "config": {
    "mediaType": "application/vnd.oci.image.config.v1+json",
    "size": 7023,
    "digest": "` + layerA + `"
  },
  "layers": [
    {"mediaType": "application/vnd.oci.image.layer.v1.tar+gzip", "size": 32654, "digest": "` + layerA + `"},
    {"mediaType": "application/vnd.oci.image.layer.v1.tar+gzip", "size": 16724, "digest": "` + layerB + `"}
  ]
}`
}

func TestParseJSONManifest(t *testing.T) {
	m, err := ParseJSONManifest([]byte(schemaV1))
	if err != nil {
		t.Fatalf("ParseJSONManifest failed: %v", err)
	}

	if m.Name != "redhat/redhat-operator-index" || m.Tag != "v4.12" {
		t.Errorf("unexpected name/tag: %s:%s", m.Name, m.Tag)
	}
	if len(m.History) != 1 || m.History[0].V1Compatibility != `{"id":"1"}` {
		t.Errorf("unexpected history: %+v", m.History)
	}

	refs := m.LayerReferences()
	if len(refs) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(refs))
	}
	if refs[0].Digest != "sha256:ac202bdeadbeef" || refs[0].OriginalRef != "layer-a" || refs[0].Size != 112 {
		t.Errorf("unexpected first layer: %+v", refs[0])
	}
}

func TestParseJSONManifest_Invalid(t *testing.T) {
	_, err := ParseJSONManifest([]byte("{not json"))
	if !errors.Is(err, cacheerrors.ErrManifest) {
		t.Errorf("expected ErrManifest, got %v", err)
	}
}

func TestParseOCIManifest(t *testing.T) {
	refs, err := ParseOCIManifest([]byte(ociManifest()))
	if err != nil {
		t.Fatalf("ParseOCIManifest failed: %v", err)
	}

	if len(refs) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(refs))
	}
	if string(refs[1].Digest) != layerB || refs[1].Size != 16724 {
		t.Errorf("unexpected second layer: %+v", refs[1])
	}
}

func TestParseOCIManifest_BadDigest(t *testing.T) {
	data := strings.Replace(ociManifest(), layerB, "sha256:short", 1)
	if _, err := ParseOCIManifest([]byte(data)); !errors.Is(err, cacheerrors.ErrManifest) {
		t.Errorf("expected ErrManifest, got %v", err)
	}
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"schema v1", schemaV1, 3},
		{"oci", ociManifest(), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")+".json")
			if err := os.WriteFile(file, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			refs, err := LoadLayers(file)
			if err != nil {
				t.Fatalf("LoadLayers failed: %v", err)
			}
			if len(refs) != tt.want {
				t.Errorf("LoadLayers returned %d layers, want %d", len(refs), tt.want)
			}
		})
	}

	if _, err := LoadLayers(filepath.Join(dir, "missing.json")); !errors.Is(err, cacheerrors.ErrManifest) {
		t.Errorf("expected ErrManifest for missing file, got %v", err)
	}
}

func TestParseImageIndex(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	refs, err := ParseImageIndex(log, []string{
		"test.registry.io/test/operator-index:v0.0.1",
		"quay.io/org/team/catalog:v2",
		"localhost:5000/index:v1",
	})
	if err != nil {
		t.Fatalf("ParseImageIndex failed: %v", err)
	}

	want := []ImageReference{
		{Registry: "test.registry.io", Namespace: "test", Name: "operator-index", Version: "v0.0.1"},
		{Registry: "quay.io", Namespace: "org/team", Name: "catalog", Version: "v2"},
		{Registry: "localhost:5000", Name: "index", Version: "v1"},
	}
	if len(refs) != len(want) {
		t.Fatalf("expected %d references, got %d", len(want), len(refs))
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %+v, want %+v", i, refs[i], want[i])
		}
	}
}

func TestParseImageIndex_Invalid(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	tests := []struct {
		name    string
		catalog string
	}{
		{"uppercase repository", "test.registry.io/UPPER/index:v1"},
		{"missing registry", "ns/index:v1"},
		{"missing tag", "test.registry.io/test/operator-index"},
		{"docker hub short name", "ubuntu:22.04"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseImageIndex(log, []string{tt.catalog}); !errors.Is(err, cacheerrors.ErrManifest) {
				t.Errorf("ParseImageIndex(%q): expected ErrManifest, got %v", tt.catalog, err)
			}
		})
	}
}

func TestManifestURL(t *testing.T) {
	tests := []struct {
		ref  ImageReference
		want string
	}{
		{
			ref:  ImageReference{Registry: "test.registry.io", Namespace: "test", Name: "some-operator", Version: "v0.0.1"},
			want: "https://test.registry.io/v2/test/some-operator/manifests/v0.0.1",
		},
		{
			ref:  ImageReference{Registry: "localhost:5000", Name: "index", Version: "latest"},
			want: "https://localhost:5000/v2/index/manifests/latest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.ref.String(), func(t *testing.T) {
			if got := ManifestURL(tt.ref); got != tt.want {
				t.Errorf("ManifestURL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCachePaths(t *testing.T) {
	if got := CacheDir("./test-artifacts", "/operator", "v1", ""); got != filepath.Join("test-artifacts", "operator", "v1", "cache") {
		t.Errorf("CacheDir() = %s", got)
	}
	if got := CacheDir("work", "release", "4.12", "amd64"); got != filepath.Join("work", "release", "4.12", "amd64", "cache") {
		t.Errorf("CacheDir() with arch = %s", got)
	}
	if got := ManifestJSONFile("./test-artifacts", "/index-manifest", "v1", ""); got != filepath.Join("test-artifacts", "index-manifest", "v1", "manifest.json") {
		t.Errorf("ManifestJSONFile() = %s", got)
	}
}
