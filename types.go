package boxspiegel

// BoxName is the org/name pair a catalog is published under.
type BoxName struct {
	Organization string
	Name         string
}

// ReleaseRequest describes one local artifact to publish as a new version.
type ReleaseRequest struct {
	Box         BoxName
	Provider    string
	Version     string
	BaseURL     string
	File        string
	Description string
}

type StorageType int

const (
	STORAGE_TYPE_SCP StorageType = iota
	STORAGE_TYPE_FS
	STORAGE_TYPE_S3
)

func (t StorageType) String() string {
	switch t {
	case STORAGE_TYPE_SCP:
		return "scp"
	case STORAGE_TYPE_FS:
		return "fs"
	case STORAGE_TYPE_S3:
		return "s3"
	}
	return "unknown"
}

// FetchOptions controls where FetchAndVerify writes and whether it unpacks.
type FetchOptions struct {
	DestinationDir string
	// ExtractDir defaults to DestinationDir.
	ExtractDir  string
	Decompress  bool
	KeepArchive bool
}

type FetchResult struct {
	ArchivePath string // empty when the archive was removed after extraction
	ExtractDir  string
	TreeHash    string
}
