package boxspiegel

// types used when reading and writing the box catalog document
//
// fields are declared in sorted key order so encoded catalogs keep the
// layout of the historical sort_keys documents

type CatalogEntry struct {
	Checksum     string       `json:"checksum"`
	ChecksumType ChecksumKind `json:"checksum_type"`
	Name         string       `json:"name"`
	URL          string       `json:"url"`
}

type VersionEntry struct {
	Providers []CatalogEntry `json:"providers"`
	Version   string         `json:"version"`
}

type Catalog struct {
	Description string         `json:"description"`
	Name        string         `json:"name"`
	Versions    []VersionEntry `json:"versions"`
}

// raw shapes used to detect missing fields while parsing
type catalogEntryRaw struct {
	Checksum     *string `json:"checksum"`
	ChecksumType *string `json:"checksum_type"`
	Name         *string `json:"name"`
	URL          *string `json:"url"`
}

type versionEntryRaw struct {
	Providers *[]catalogEntryRaw `json:"providers"`
	Version   *string            `json:"version"`
}

type catalogRaw struct {
	Description *string            `json:"description"`
	Name        *string            `json:"name"`
	Versions    *[]versionEntryRaw `json:"versions"`
}
