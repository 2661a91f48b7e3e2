package boxspiegel

import (
	"context"

	"go.uber.org/zap"
)

// BoxStorer is where published boxes live. LoadCatalog returns a nil catalog
// when the box has never been published.
type BoxStorer interface {
	LoadCatalog(ctx context.Context, box BoxName) (*Catalog, error)
	Publish(ctx context.Context, stagingRoot string, box BoxName) error
}

type FSBoxStorageConfiguration struct {
	root  string
	sugar *zap.SugaredLogger
}

type S3BoxStorageConfiguration struct {
	bucket   string
	prefix   string
	s3client S3ClientInterface
	sugar    *zap.SugaredLogger
}

type SCPBoxStorageConfiguration struct {
	baseURL    string
	remotePath string
	fetcher    *Fetcher
	dialer     sshDialer
	sugar      *zap.SugaredLogger
}
