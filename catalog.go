package boxspiegel

import (
	"encoding/json"
	"fmt"
)

func (e CatalogEntry) String() string {
	return fmt.Sprintf("%s %s (%s:%s)", e.Name, e.URL, e.ChecksumType, e.Checksum)
}

// Provider returns the descriptor for the named provider, if the version has
// one. When a hand-edited catalog lists the provider twice the later entry wins.
func (v VersionEntry) Provider(name string) (CatalogEntry, bool) {
	for i := len(v.Providers) - 1; i >= 0; i-- {
		if v.Providers[i].Name == name {
			return v.Providers[i], true
		}
	}
	return CatalogEntry{}, false
}

func (c *Catalog) HasVersion(version string) bool {
	for _, v := range c.Versions {
		if v.Version == version {
			return true
		}
	}
	return false
}

// ParseCatalog decodes a catalog document. Every field except description is
// required at every level; unknown fields are ignored. Repeated versions and
// providers are kept as listed: the resolver takes the last of equal versions
// and VersionEntry.Provider the last matching descriptor.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw catalogRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCatalog, err)
	}

	missing := func(path string) error {
		return fmt.Errorf("%w: missing required field %s", ErrMalformedCatalog, path)
	}

	if raw.Name == nil {
		return nil, missing("name")
	}
	if raw.Versions == nil {
		return nil, missing("versions")
	}

	catalog := &Catalog{
		Name:     *raw.Name,
		Versions: make([]VersionEntry, 0, len(*raw.Versions)),
	}
	if raw.Description != nil {
		catalog.Description = *raw.Description
	}

	for i, rv := range *raw.Versions {
		if rv.Version == nil {
			return nil, missing(fmt.Sprintf("versions[%d].version", i))
		}
		if rv.Providers == nil {
			return nil, missing(fmt.Sprintf("versions[%d].providers", i))
		}

		version := VersionEntry{
			Version:   *rv.Version,
			Providers: make([]CatalogEntry, 0, len(*rv.Providers)),
		}
		for j, rp := range *rv.Providers {
			path := fmt.Sprintf("versions[%d].providers[%d]", i, j)
			switch {
			case rp.Name == nil:
				return nil, missing(path + ".name")
			case rp.URL == nil:
				return nil, missing(path + ".url")
			case rp.ChecksumType == nil:
				return nil, missing(path + ".checksum_type")
			case rp.Checksum == nil:
				return nil, missing(path + ".checksum")
			}

			// checksum_type is kept verbatim; unsupported kinds are only an
			// error once something tries to verify against them
			version.Providers = append(version.Providers, CatalogEntry{
				Name:         *rp.Name,
				URL:          *rp.URL,
				ChecksumType: ChecksumKind(*rp.ChecksumType),
				Checksum:     *rp.Checksum,
			})
		}
		catalog.Versions = append(catalog.Versions, version)
	}

	return catalog, nil
}

func MarshalCatalog(c *Catalog) ([]byte, error) {
	// empty lists must encode as [] rather than null or the result will not parse
	out := *c
	out.Versions = make([]VersionEntry, len(c.Versions))
	copy(out.Versions, c.Versions)
	for i := range out.Versions {
		if out.Versions[i].Providers == nil {
			out.Versions[i].Providers = []CatalogEntry{}
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshalling catalog JSON: %w", err)
	}
	return append(data, '\n'), nil
}
