package boxspiegel

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseBoxName(t *testing.T) {
	tests := []struct {
		in      string
		want    BoxName
		wantErr bool
	}{
		{"acme/base", BoxName{"acme", "base"}, false},
		{"my-org.io/ubuntu_22.04", BoxName{"my-org.io", "ubuntu_22.04"}, false},
		{"acme/", BoxName{"acme", ""}, false},
		{"acme", BoxName{}, true},
		{"acme/base/extra", BoxName{}, true},
		{"acme/ba se", BoxName{}, true},
		{"ac:me/base", BoxName{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBoxName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("got %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func testRelease(t *testing.T, version string, content string) ReleaseRequest {
	t.Helper()
	path := writeTestFile(t, t.TempDir(), "base.box", []byte(content))
	return ReleaseRequest{
		Box:         BoxName{Organization: "acme", Name: "base"},
		Provider:    "virtualbox",
		Version:     version,
		BaseURL:     "https://x",
		File:        path,
		Description: "base image",
	}
}

func TestMergeCatalogFirstPublish(t *testing.T) {
	req := testRelease(t, "1.0.0", "box contents")

	catalog, err := MergeCatalog(nil, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.Name != "acme/base" || catalog.Description != "base image" {
		t.Errorf("name/description = %q/%q", catalog.Name, catalog.Description)
	}
	if len(catalog.Versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(catalog.Versions))
	}
	v := catalog.Versions[0]
	if v.Version != "1.0.0" || len(v.Providers) != 1 {
		t.Fatalf("unexpected version entry %#v", v)
	}
	p := v.Providers[0]
	if !strings.HasSuffix(p.URL, "/acme/base/boxes/base.box") {
		t.Errorf("url %s does not end in /acme/base/boxes/base.box", p.URL)
	}
	if p.URL != "https://x/acme/base/boxes/base.box" {
		t.Errorf("url = %s", p.URL)
	}
	if p.ChecksumType != CHECKSUM_SHA1 || p.Checksum != sha1Hex([]byte("box contents")) {
		t.Errorf("checksum = %s:%s, want sha1 of the local file", p.ChecksumType, p.Checksum)
	}
	if p.Name != "virtualbox" {
		t.Errorf("provider = %s", p.Name)
	}
}

func TestMergeCatalogAppends(t *testing.T) {
	existing := sampleCatalog()
	before := sampleCatalog()
	req := testRelease(t, "3.0.0", "new box")
	req.Description = "ignored on append"

	merged, err := MergeCatalog(existing, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged.Versions) != len(existing.Versions)+1 {
		t.Fatalf("expected %d versions, got %d", len(existing.Versions)+1, len(merged.Versions))
	}
	if !reflect.DeepEqual(merged.Versions[:len(existing.Versions)], existing.Versions) {
		t.Error("prior versions were changed or reordered")
	}
	if merged.Versions[len(merged.Versions)-1].Version != "3.0.0" {
		t.Errorf("tail version = %s", merged.Versions[len(merged.Versions)-1].Version)
	}
	if merged.Description != "base image" || merged.Name != "acme/base" {
		t.Errorf("catalog header changed: %q %q", merged.Name, merged.Description)
	}
	if !reflect.DeepEqual(existing, before) {
		t.Error("the existing catalog was mutated")
	}
}

func TestMergeCatalogKeepsLegacyEntries(t *testing.T) {
	existing := sampleCatalog()
	merged, err := MergeCatalog(existing, testRelease(t, "2.1.0", "x"))
	if err != nil {
		t.Fatal(err)
	}
	p, ok := merged.Versions[1].Provider("vmware_fusion")
	if !ok || p.ChecksumType != CHECKSUM_MD5 || p.Checksum != "cccc" {
		t.Errorf("legacy md5 entry was rewritten: %#v", p)
	}
}

func TestMergeCatalogDuplicateVersion(t *testing.T) {
	existing := sampleCatalog()
	_, err := MergeCatalog(existing, testRelease(t, "2.0.0", "dup"))
	if !errors.Is(err, ErrDuplicateVersion) {
		t.Fatalf("got %v, want ErrDuplicateVersion", err)
	}
	if len(existing.Versions) != 2 {
		t.Error("existing catalog changed after a rejected merge")
	}
}

func TestMergeCatalogMissingFile(t *testing.T) {
	req := testRelease(t, "1.0.0", "x")
	req.File = req.File + ".gone"
	_, err := MergeCatalog(nil, req)
	if !errors.Is(err, ErrIO) {
		t.Errorf("got %v, want ErrIO", err)
	}
}

func TestCatalogAndArtifactURL(t *testing.T) {
	box := BoxName{Organization: "acme", Name: "base"}
	if got := CatalogURL("https://boxes.example.com/", box); got != "https://boxes.example.com/acme/base" {
		t.Errorf("CatalogURL = %s", got)
	}
	if got := ArtifactURL("https://boxes.example.com", box, "/tmp/build/base.box"); got != "https://boxes.example.com/acme/base/boxes/base.box" {
		t.Errorf("ArtifactURL = %s", got)
	}
}
