package boxspiegel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// NewFSBoxStorer publishes into a local directory tree laid out as
// root/org/name/{metadata.json,boxes/}, e.g. a mounted web root.
func NewFSBoxStorer(root string, sugar *zap.SugaredLogger) FSBoxStorageConfiguration {
	return FSBoxStorageConfiguration{root: root, sugar: sugar}
}

func (s FSBoxStorageConfiguration) LoadCatalog(ctx context.Context, box BoxName) (*Catalog, error) {
	catalogPath := filepath.Join(s.root, box.Path(), METADATA_FILE)
	contents, err := os.ReadFile(catalogPath)
	if errors.Is(err, fs.ErrNotExist) {
		s.sugar.Infof("no catalog at %s, this is the first publish of %s", catalogPath, box)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read catalog %s: %w", ErrIO, catalogPath, err)
	}
	catalog, err := ParseCatalog(contents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", catalogPath, err)
	}
	return catalog, nil
}

// Publish copies the staged org directory into root. The catalog is written
// last so readers never see a version whose artifact is missing.
func (s FSBoxStorageConfiguration) Publish(ctx context.Context, stagingRoot string, box BoxName) error {
	stagedBox := filepath.Join(stagingRoot, box.Path())
	var catalogPath string

	err := filepath.WalkDir(stagedBox, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(stagingRoot, path)
		if err != nil {
			return err
		}
		target := filepath.Join(s.root, rel)
		if d.IsDir() {
			return os.MkdirAll(target, os.FileMode(0755))
		}
		if d.Name() == METADATA_FILE && filepath.Dir(path) == stagedBox {
			catalogPath = path
			return nil
		}
		s.sugar.Debugf("copying %s to %s", path, target)
		return copyFile(path, target)
	})
	if err != nil {
		return fmt.Errorf("%w: publishing %s to %s: %w", ErrIO, box, s.root, err)
	}
	if catalogPath == "" {
		return fmt.Errorf("%w: staged tree for %s has no %s", ErrIO, box, METADATA_FILE)
	}

	target := filepath.Join(s.root, box.Path(), METADATA_FILE)
	if err := copyFile(catalogPath, target); err != nil {
		return fmt.Errorf("%w: writing catalog %s: %w", ErrIO, target, err)
	}
	s.sugar.Infof("published %s to %s", box, s.root)
	return nil
}

// copyFile writes src to dst through a temporary sibling so dst is replaced
// in one rename.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(os.FileMode(0644)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
