package boxspiegel

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewBoxStorerFromConfig builds the storer selected by config.Storage. The
// fetcher is used by storers that read existing catalogs over HTTP.
func NewBoxStorerFromConfig(ctx context.Context, config PublishConfig, fetcher *Fetcher, sugar *zap.SugaredLogger) (BoxStorer, error) {
	switch config.Storage {
	case STORAGE_TYPE_SCP:
		return NewSCPBoxStorer(config.Release.BaseURL, config.Server, config.RemotePath, config.SSH, fetcher, sugar)
	case STORAGE_TYPE_FS:
		return NewFSBoxStorer(config.RemotePath, sugar), nil
	case STORAGE_TYPE_S3:
		client, err := NewS3Client(ctx, config.S3.Endpoint, config.S3.Region)
		if err != nil {
			return nil, fmt.Errorf("%w: loading AWS configuration: %w", ErrConfiguration, err)
		}
		return NewS3BoxStorer(client, config.S3.Bucket, config.S3.Prefix, sugar), nil
	}
	return nil, fmt.Errorf("%w: unknown storage type %s", ErrConfiguration, config.Storage)
}
