package boxspiegel

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var boxNameRegex = regexp.MustCompile(`^([A-Za-z0-9_.-]*)/([A-Za-z0-9_.-]*)$`)

func (b BoxName) String() string {
	return fmt.Sprintf("%s/%s", b.Organization, b.Name)
}

// Path returns the org/name directory a box lives under, in OS path form.
func (b BoxName) Path() string {
	return filepath.Join(b.Organization, b.Name)
}

func ParseBoxName(s string) (BoxName, error) {
	m := boxNameRegex.FindStringSubmatch(s)
	if m == nil {
		return BoxName{}, fmt.Errorf("%w: box name %q is not of the form org/name", ErrConfiguration, s)
	}
	return BoxName{Organization: m[1], Name: m[2]}, nil
}

// CatalogURL is where the catalog for box is served.
func CatalogURL(baseURL string, box BoxName) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(baseURL, "/"), box.Organization, box.Name)
}

// ArtifactURL is where an artifact published for box will be downloaded from.
func ArtifactURL(baseURL string, box BoxName, file string) string {
	return fmt.Sprintf("%s/%s/%s", CatalogURL(baseURL, box), BOXES_DIR, filepath.Base(file))
}

// newVersionEntry hashes the local artifact; new entries are always sha1.
func newVersionEntry(req ReleaseRequest) (VersionEntry, error) {
	checksum, err := Digest(req.File, CHECKSUM_SHA1)
	if err != nil {
		return VersionEntry{}, err
	}
	return VersionEntry{
		Version: req.Version,
		Providers: []CatalogEntry{
			{
				Name:         req.Provider,
				URL:          ArtifactURL(req.BaseURL, req.Box, req.File),
				ChecksumType: CHECKSUM_SHA1,
				Checksum:     checksum,
			},
		},
	}, nil
}

// MergeCatalog returns the catalog that results from publishing req on top of
// existing, which may be nil for a first publish. Published versions are
// immutable: existing is never modified and re-publishing a version fails.
func MergeCatalog(existing *Catalog, req ReleaseRequest) (*Catalog, error) {
	if existing != nil && existing.HasVersion(req.Version) {
		return nil, fmt.Errorf("%w: %s version %s", ErrDuplicateVersion, req.Box, req.Version)
	}

	version, err := newVersionEntry(req)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return &Catalog{
			Name:        req.Box.String(),
			Description: req.Description,
			Versions:    []VersionEntry{version},
		}, nil
	}

	merged := &Catalog{
		Name:        existing.Name,
		Description: existing.Description,
		Versions:    make([]VersionEntry, 0, len(existing.Versions)+1),
	}
	merged.Versions = append(merged.Versions, existing.Versions...)
	merged.Versions = append(merged.Versions, version)
	return merged, nil
}
