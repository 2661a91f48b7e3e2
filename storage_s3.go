package boxspiegel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

func NewS3BoxStorer(client S3ClientInterface, bucket string, prefix string, sugar *zap.SugaredLogger) S3BoxStorageConfiguration {
	return S3BoxStorageConfiguration{bucket: bucket, prefix: prefix, s3client: client, sugar: sugar}
}

// object keys always use forward slashes regardless of the local OS
func (s S3BoxStorageConfiguration) key(parts ...string) string {
	return path.Join(append([]string{s.prefix}, parts...)...)
}

// ValidatePrerequisites checks the bucket can be listed and written to before
// anything is uploaded.
func (s S3BoxStorageConfiguration) ValidatePrerequisites(ctx context.Context) error {
	_, err := s.s3client.ListPrefix(ctx, s.bucket, s.prefix)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	key := s.key(fmt.Sprintf(".testfile.%d", time.Now().Unix()))
	_, err = s.s3client.PutObject(ctx, s.bucket, key, bytes.NewReader([]byte{'b', 'l', 'a', 'h'}))
	if err != nil {
		return fmt.Errorf("%w: bucket %s is not writable: %w", ErrTransport, s.bucket, err)
	}
	err = s.s3client.DeleteObject(ctx, s.bucket, key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return nil
}

func (s S3BoxStorageConfiguration) LoadCatalog(ctx context.Context, box BoxName) (*Catalog, error) {
	catalogKey := s.key(box.Organization, box.Name, METADATA_FILE)
	contents, err := s.s3client.GetObjectContents(ctx, s.bucket, catalogKey)
	if errors.Is(err, ErrNotFound) {
		s.sugar.Infof("no catalog at s3://%s/%s, this is the first publish of %s", s.bucket, catalogKey, box)
		return nil, nil
	}
	if err != nil {
		errWrapped := fmt.Errorf("%w: unable to get catalog %s from S3: %w", ErrTransport, catalogKey, err)
		s.sugar.Error(errWrapped)
		return nil, errWrapped
	}
	catalog, err := ParseCatalog(contents)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, catalogKey, err)
	}
	return catalog, nil
}

// Publish uploads every staged artifact, then the catalog.
func (s S3BoxStorageConfiguration) Publish(ctx context.Context, stagingRoot string, box BoxName) error {
	stagedBox := filepath.Join(stagingRoot, box.Path())

	err := filepath.WalkDir(filepath.Join(stagedBox, BOXES_DIR), func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(stagingRoot, p)
		if err != nil {
			return err
		}
		return s.upload(ctx, p, s.key(filepath.ToSlash(rel)), "application/octet-stream")
	})
	if err != nil {
		return fmt.Errorf("%w: uploading %s: %w", ErrTransport, box, err)
	}

	catalogKey := s.key(box.Organization, box.Name, METADATA_FILE)
	if err := s.upload(ctx, filepath.Join(stagedBox, METADATA_FILE), catalogKey, "application/json"); err != nil {
		return fmt.Errorf("%w: error writing catalog JSON: %w", ErrTransport, err)
	}
	s.sugar.Infof("published %s to s3://%s/%s", box, s.bucket, s.key())
	return nil
}

func (s S3BoxStorageConfiguration) upload(ctx context.Context, localPath string, key string, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	etag, err := s.s3client.PutObjectWithContentType(ctx, s.bucket, key, f, contentType)
	if err != nil {
		return err
	}
	if etag != nil {
		s.sugar.Debugf("uploaded %s to S3 (etag %s)", key, *etag)
	} else {
		s.sugar.Debugf("uploaded %s to S3", key)
	}
	return nil
}
