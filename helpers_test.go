package boxspiegel

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	awss3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	kgzip "github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testSugar(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

func sha1Hex(data []byte) string {
	return fmt.Sprintf("%x", sha1.Sum(data))
}

// writeTestFile writes data at dir/name and returns the full path.
func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func buildTar(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		hdr := &tar.Header{Name: e.name, Typeflag: typeflag, Linkname: e.linkname, Mode: 0644}
		if typeflag == tar.TypeDir {
			hdr.Mode = 0755
		}
		if typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write tar header: %v", err)
		}
		if typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("failed to write tar body: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	return buf.Bytes()
}

func buildTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := kgzip.NewWriter(&buf)
	if _, err := gw.Write(buildTar(t, entries)); err != nil {
		t.Fatalf("failed to gzip: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

func defaultBoxEntries() []tarEntry {
	return []tarEntry{
		{name: "./metadata.json", body: `{"provider": "virtualbox"}`},
		{name: "./box.ovf", body: "<ovf/>"},
		{name: "./disks", typeflag: tar.TypeDir},
		{name: "./disks/disk1.vmdk", body: "disk bytes"},
	}
}

func sampleCatalog() *Catalog {
	return &Catalog{
		Name:        "acme/base",
		Description: "base image",
		Versions: []VersionEntry{
			{
				Version: "1.0.0",
				Providers: []CatalogEntry{
					{Name: "virtualbox", URL: "https://x/acme/base/boxes/base-1.0.0.box", ChecksumType: CHECKSUM_SHA1, Checksum: "aaaa"},
				},
			},
			{
				Version: "2.0.0",
				Providers: []CatalogEntry{
					{Name: "virtualbox", URL: "https://x/acme/base/boxes/base-2.0.0.box", ChecksumType: CHECKSUM_SHA1, Checksum: "bbbb"},
					{Name: "vmware_fusion", URL: "https://x/acme/base/boxes/base-2.0.0-vmware.box", ChecksumType: CHECKSUM_MD5, Checksum: "cccc"},
				},
			},
		},
	}
}

type mockBoxStorer struct {
	loadCatalogFunc func(ctx context.Context, box BoxName) (*Catalog, error)
	publishFunc     func(ctx context.Context, stagingRoot string, box BoxName) error
}

func (m mockBoxStorer) LoadCatalog(ctx context.Context, box BoxName) (*Catalog, error) {
	return m.loadCatalogFunc(ctx, box)
}

func (m mockBoxStorer) Publish(ctx context.Context, stagingRoot string, box BoxName) error {
	return m.publishFunc(ctx, stagingRoot, box)
}

// mockS3Client keeps objects in memory.
type mockS3Client struct {
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *mockS3Client) GetObjectContents(ctx context.Context, bucket string, key string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
	}
	return data, nil
}

func (m *mockS3Client) ListPrefix(ctx context.Context, bucket string, prefix string) (map[string]awss3types.Object, error) {
	return map[string]awss3types.Object{}, nil
}

func (m *mockS3Client) PutObjectWithContentType(ctx context.Context, bucket string, key string, body io.Reader, contentType string) (*string, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	m.objects[bucket+"/"+key] = data
	m.contentTypes[bucket+"/"+key] = contentType
	etag := fmt.Sprintf("%q", sha1Hex(data))
	return &etag, nil
}

func (m *mockS3Client) PutObject(ctx context.Context, bucket string, key string, body io.Reader) (*string, error) {
	return m.PutObjectWithContentType(ctx, bucket, key, body, "")
}

func (m *mockS3Client) DeleteObject(ctx context.Context, bucket string, key string) error {
	delete(m.objects, bucket+"/"+key)
	return nil
}
