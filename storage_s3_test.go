package boxspiegel

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestS3LoadCatalog(t *testing.T) {
	client := newMockS3Client()
	storer := NewS3BoxStorer(client, "boxes", "public", testSugar(t))
	box := BoxName{"acme", "base"}

	catalog, err := storer.LoadCatalog(context.Background(), box)
	if err != nil || catalog != nil {
		t.Fatalf("first publish: got %v, %v; want nil, nil", catalog, err)
	}

	doc, _ := MarshalCatalog(sampleCatalog())
	client.objects["boxes/public/acme/base/metadata.json"] = doc
	catalog, err = storer.LoadCatalog(context.Background(), box)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(catalog.Versions) != 2 {
		t.Errorf("expected 2 versions, got %d", len(catalog.Versions))
	}

	client.objects["boxes/public/acme/base/metadata.json"] = []byte("<Error>AccessDenied</Error>")
	if _, err := storer.LoadCatalog(context.Background(), box); !errors.Is(err, ErrMalformedCatalog) {
		t.Errorf("got %v, want ErrMalformedCatalog", err)
	}
}

func TestS3Publish(t *testing.T) {
	client := newMockS3Client()
	storer := NewS3BoxStorer(client, "boxes", "", testSugar(t))
	req := testRelease(t, "1.0.0", "box contents")

	catalog, err := NewPublisher(storer, t.TempDir(), testSugar(t)).Publish(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := string(client.objects["boxes/acme/base/boxes/base.box"]); got != "box contents" {
		t.Errorf("artifact = %q", got)
	}
	if ct := client.contentTypes["boxes/acme/base/metadata.json"]; ct != "application/json" {
		t.Errorf("catalog content type = %q", ct)
	}
	stored, err := ParseCatalog(client.objects["boxes/acme/base/metadata.json"])
	if err != nil {
		t.Fatalf("stored catalog does not parse: %v", err)
	}
	if stored.Versions[0].Providers[0].Checksum != catalog.Versions[0].Providers[0].Checksum {
		t.Error("stored catalog differs from the merged catalog")
	}
	for key := range client.objects {
		if strings.Contains(key, ".testfile.") {
			t.Errorf("prerequisite check object %s was not deleted", key)
		}
	}
}

func TestS3PublishUploadFailure(t *testing.T) {
	client := newMockS3Client()
	client.putErr = errors.New("access denied")
	storer := NewS3BoxStorer(client, "boxes", "", testSugar(t))

	stagingRoot := t.TempDir()
	req := testRelease(t, "1.0.0", "box")
	catalog, err := MergeCatalog(nil, req)
	if err != nil {
		t.Fatal(err)
	}
	if err := stageRelease(stagingRoot, req, catalog); err != nil {
		t.Fatal(err)
	}

	err = storer.Publish(context.Background(), stagingRoot, req.Box)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("got %v, want ErrTransport", err)
	}
	if err := storer.ValidatePrerequisites(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("got %v, want ErrTransport", err)
	}
}
