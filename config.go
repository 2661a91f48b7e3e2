package boxspiegel

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_TIMEOUT = 30 * time.Second
	DEFAULT_RETRIES = 2
)

// LoadPublishSettings reads a JSON or YAML config file. A missing file is only
// an error when the caller asked for it explicitly.
func LoadPublishSettings(configPath string, explicit bool) (PublishSettings, error) {
	var settings PublishSettings
	configData, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("%w: reading config file: %w", ErrConfiguration, err)
	}
	if err := yaml.Unmarshal(configData, &settings); err != nil {
		return settings, fmt.Errorf("%w: parsing config file %s: %w", ErrConfiguration, configPath, err)
	}
	return settings, nil
}

// Overlay returns s with every non-empty field of o copied over it.
func (s PublishSettings) Overlay(o PublishSettings) PublishSettings {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.Provider, o.Provider)
	set(&s.File, o.File)
	set(&s.BaseURL, o.BaseURL)
	set(&s.RemotePath, o.RemotePath)
	set(&s.Server, o.Server)
	set(&s.Name, o.Name)
	set(&s.Description, o.Description)
	set(&s.Version, o.Version)
	set(&s.StorageType, o.StorageType)
	set(&s.Timeout, o.Timeout)
	set(&s.S3Config.Bucket, o.S3Config.Bucket)
	set(&s.S3Config.Prefix, o.S3Config.Prefix)
	set(&s.S3Config.Endpoint, o.S3Config.Endpoint)
	set(&s.S3Config.Region, o.S3Config.Region)
	set(&s.SSHConfig.IdentityFile, o.SSHConfig.IdentityFile)
	set(&s.SSHConfig.KnownHostsFile, o.SSHConfig.KnownHostsFile)
	if o.Retries != nil {
		s.Retries = o.Retries
	}
	return s
}

func ParseStorageType(s string) (StorageType, error) {
	switch x := strings.ToLower(s); x {
	case "", "scp":
		return STORAGE_TYPE_SCP, nil
	case "fs":
		return STORAGE_TYPE_FS, nil
	case "s3":
		return STORAGE_TYPE_S3, nil
	default:
		return 0, fmt.Errorf("%s is not a known storage type", x)
	}
}

// Validate checks every setting and reports all problems at once, before
// anything touches the network.
func (s PublishSettings) Validate() (PublishConfig, error) {
	var problems []string
	missing := func(key, value string) bool {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, fmt.Sprintf("%s not defined, this is a required field", key))
			return true
		}
		return false
	}

	config := PublishConfig{
		Release: ReleaseRequest{
			Provider:    strings.TrimSpace(s.Provider),
			Version:     strings.TrimSpace(s.Version),
			BaseURL:     strings.TrimRight(strings.TrimSpace(s.BaseURL), "/"),
			File:        s.File,
			Description: s.Description,
		},
		RemotePath: s.RemotePath,
		Server:     s.Server,
		S3:         s.S3Config,
		SSH: SSHOptions{
			IdentityFile:   s.SSHConfig.IdentityFile,
			KnownHostsFile: s.SSHConfig.KnownHostsFile,
		},
		Timeout: DEFAULT_TIMEOUT,
		Retries: DEFAULT_RETRIES,
	}

	storageType, err := ParseStorageType(s.StorageType)
	if err != nil {
		problems = append(problems, err.Error())
	}
	config.Storage = storageType

	missing("provider", s.Provider)
	if !missing("file", s.File) {
		if !strings.HasSuffix(strings.ToLower(s.File), BOX_FILE_SUFFIX) {
			problems = append(problems, fmt.Sprintf("box filename %s needs to end with %s", s.File, BOX_FILE_SUFFIX))
		} else if info, err := os.Stat(s.File); err != nil {
			problems = append(problems, fmt.Sprintf("file %s: %v", s.File, err))
		} else if !info.Mode().IsRegular() {
			problems = append(problems, fmt.Sprintf("file path %s is not a file", s.File))
		}
	}
	if !missing("baseurl", s.BaseURL) {
		u, err := url.Parse(config.Release.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("baseurl %s is not an absolute http(s) URL", s.BaseURL))
		}
	}
	missing("version", s.Version)

	switch config.Storage {
	case STORAGE_TYPE_SCP:
		missing("remotepath", s.RemotePath)
		missing("server", s.Server)
	case STORAGE_TYPE_FS:
		missing("remotepath", s.RemotePath)
	case STORAGE_TYPE_S3:
		missing("s3_config.bucket", s.S3Config.Bucket)
	}

	if s.Name == "" {
		config.Release.Box = BoxName{Organization: UNDEFINED_BOX_PART, Name: UNDEFINED_BOX_PART}
	} else if box, err := ParseBoxName(s.Name); err != nil {
		problems = append(problems, fmt.Sprintf("name %q must be of the form org/name", s.Name))
	} else {
		config.Release.Box = box
	}
	if config.Release.Description == "" {
		config.Release.Description = DEFAULT_DESCRIPTION
	}

	if s.Timeout != "" {
		timeout, err := time.ParseDuration(s.Timeout)
		if err != nil || timeout <= 0 {
			problems = append(problems, fmt.Sprintf("timeout %q is not a positive duration", s.Timeout))
		} else {
			config.Timeout = timeout
		}
	}
	if s.Retries != nil {
		if *s.Retries < 0 {
			problems = append(problems, "retries must not be negative")
		} else {
			config.Retries = *s.Retries
		}
	}
	config.SSH.Timeout = config.Timeout

	if len(problems) > 0 {
		return PublishConfig{}, fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return config, nil
}
