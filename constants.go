package boxspiegel

const (
	DEFAULT_PROVIDER        = "virtualbox"
	DEFAULT_CONFIG_FILE     = "config.json"
	DEFAULT_DESCRIPTION     = "No description provided"
	UNDEFINED_BOX_PART      = "undefined"
	METADATA_FILE           = "metadata.json"
	BOXES_DIR               = "boxes"
	BOX_FILE_SUFFIX         = ".box"
	VERSION_SEED            = "0.0.0"
	DIGEST_CHUNK_SIZE       = 32 * 1024
	STAGING_DIR_PATTERN     = "boxspiegel-*"
	PARTIAL_DOWNLOAD_SUFFIX = ".part"
)

// KnownProviders lists the provider identifiers in common use. The set is
// open: other identifiers are accepted as long as the catalog lists them.
var KnownProviders = []string{
	"vmware_workstation",
	"vmware_fusion",
	"virtualbox",
	"docker",
	"hyperv",
}
