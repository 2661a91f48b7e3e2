package boxspiegel

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

type Publisher struct {
	storage BoxStorer
	// parent directory for staging trees; empty means os.TempDir()
	stagingParent string
	sugar         *zap.SugaredLogger
}

func NewPublisher(storage BoxStorer, stagingParent string, sugar *zap.SugaredLogger) *Publisher {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	return &Publisher{storage: storage, stagingParent: stagingParent, sugar: sugar}
}

type prerequisiteValidator interface {
	ValidatePrerequisites(ctx context.Context) error
}

// Publish merges req into the box's current catalog and hands the staged
// artifact and catalog to storage. Nothing is transferred when the version
// already exists. The local staging tree is removed on every path; remote
// state is never rolled back.
func (p *Publisher) Publish(ctx context.Context, req ReleaseRequest) (*Catalog, error) {
	if v, ok := p.storage.(prerequisiteValidator); ok {
		if err := v.ValidatePrerequisites(ctx); err != nil {
			return nil, err
		}
	}

	existing, err := p.storage.LoadCatalog(ctx, req.Box)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		p.sugar.Infof("current catalog for %s lists %d versions", req.Box, len(existing.Versions))
	}

	catalog, err := MergeCatalog(existing, req)
	if err != nil {
		return nil, err
	}

	stagingRoot, err := os.MkdirTemp(p.stagingParent, STAGING_DIR_PATTERN)
	if err != nil {
		return nil, fmt.Errorf("%w: creating staging directory: %w", ErrIO, err)
	}
	defer func() {
		if err := os.RemoveAll(stagingRoot); err != nil {
			p.sugar.Warnf("unable to remove staging directory %s: %v", stagingRoot, err)
		}
	}()

	if err := stageRelease(stagingRoot, req, catalog); err != nil {
		return nil, err
	}
	p.sugar.Debugf("staged %s version %s in %s", req.Box, req.Version, stagingRoot)

	if err := p.storage.Publish(ctx, stagingRoot, req.Box); err != nil {
		return nil, err
	}
	p.sugar.Infof("published %s version %s for %s", req.Box, req.Version, req.Provider)
	return catalog, nil
}

// stageRelease lays out root/org/name/{boxes/<artifact>,metadata.json}.
func stageRelease(root string, req ReleaseRequest, catalog *Catalog) error {
	boxDir := filepath.Join(root, req.Box.Path())
	boxesDir := filepath.Join(boxDir, BOXES_DIR)
	if err := os.MkdirAll(boxesDir, os.FileMode(0755)); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	if err := linkOrCopy(req.File, filepath.Join(boxesDir, filepath.Base(req.File))); err != nil {
		return fmt.Errorf("%w: staging %s: %w", ErrIO, req.File, err)
	}

	catalogJson, err := MarshalCatalog(catalog)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(boxDir, METADATA_FILE), catalogJson, os.FileMode(0644)); err != nil {
		return fmt.Errorf("%w: writing catalog JSON: %w", ErrIO, err)
	}
	return nil
}

// linkOrCopy hard links src to dst, copying when they sit on different filesystems.
func linkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(0644))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
