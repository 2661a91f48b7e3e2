package boxspiegel

import "time"

type S3Settings struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
}

type SSHSettings struct {
	IdentityFile   string `yaml:"identity_file"`
	KnownHostsFile string `yaml:"known_hosts"`
}

// PublishSettings is the publisher configuration as written in a config file
// or given on the command line, before validation. JSON files parse too.
type PublishSettings struct {
	Provider    string      `yaml:"provider"`
	File        string      `yaml:"file"`
	BaseURL     string      `yaml:"baseurl"`
	RemotePath  string      `yaml:"remotepath"`
	Server      string      `yaml:"server"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Version     string      `yaml:"version"`
	StorageType string      `yaml:"storage_type"`
	Timeout     string      `yaml:"timeout"`
	Retries     *int        `yaml:"retries"`
	S3Config    S3Settings  `yaml:"s3_config"`
	SSHConfig   SSHSettings `yaml:"ssh_config"`
}

// PublishConfig is a validated PublishSettings.
type PublishConfig struct {
	Release    ReleaseRequest
	Storage    StorageType
	RemotePath string
	Server     string
	S3         S3Settings
	SSH        SSHOptions
	Timeout    time.Duration
	Retries    int
}
