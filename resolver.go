package boxspiegel

import (
	"fmt"
	"strings"

	semver "github.com/blang/semver/v4"
)

// VersionComparator orders two version strings, returning <0, 0 or >0.
type VersionComparator func(a, b string) int

// LexicographicCompare is the ordering existing catalogs were resolved with.
// It compares bytes, so "9.0.0" sorts after "10.0.0".
func LexicographicCompare(a, b string) int {
	return strings.Compare(a, b)
}

// SemverCompare orders semantic versions, falling back to LexicographicCompare
// when either side does not parse.
func SemverCompare(a, b string) int {
	va, errA := semver.ParseTolerant(a)
	vb, errB := semver.ParseTolerant(b)
	if errA != nil || errB != nil {
		return LexicographicCompare(a, b)
	}
	return va.Compare(vb)
}

// Resolver picks the latest version of a catalog using Compare, which
// defaults to LexicographicCompare.
type Resolver struct {
	Compare VersionComparator
}

// Resolution is the descriptor picked by the resolver along with the version
// it was published under.
type Resolution struct {
	Version string
	Entry   CatalogEntry
}

// ResolveLatest resolves with the default lexicographic ordering.
func ResolveLatest(catalog *Catalog, provider string) (Resolution, error) {
	return Resolver{}.ResolveLatest(catalog, provider)
}

// ResolveLatest finds the highest version in the catalog and returns its
// descriptor for provider. The scan starts from VERSION_SEED and replaces the
// current best whenever the candidate compares greater or equal, so among
// equal versions the last one listed wins. A highest version that does not
// offer provider is an error; older versions are not consulted.
func (r Resolver) ResolveLatest(catalog *Catalog, provider string) (Resolution, error) {
	compare := r.Compare
	if compare == nil {
		compare = LexicographicCompare
	}

	if catalog == nil || len(catalog.Versions) == 0 {
		return Resolution{}, ErrEmptyCatalog
	}

	best := VERSION_SEED
	var latest *VersionEntry
	for i := range catalog.Versions {
		v := &catalog.Versions[i]
		if compare(best, v.Version) <= 0 {
			best = v.Version
			latest = v
		}
	}
	if latest == nil {
		return Resolution{}, fmt.Errorf("%w: no version of %s sorts above %s", ErrProviderNotFound, catalog.Name, VERSION_SEED)
	}

	entry, ok := latest.Provider(provider)
	if !ok {
		return Resolution{}, fmt.Errorf("%w: latest version %s of %s does not offer provider %s", ErrProviderNotFound, latest.Version, catalog.Name, provider)
	}
	return Resolution{Version: latest.Version, Entry: entry}, nil
}
