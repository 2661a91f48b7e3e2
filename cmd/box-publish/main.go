// box-publish adds a local .box file to its catalog as a new version and
// uploads both to the box server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/erhudy/boxspiegel"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(argv []string, stderr io.Writer) int {
	var flagSettings boxspiegel.PublishSettings
	var configPath string
	var loggerType string
	var stagingDir string
	var retries int

	flags := pflag.NewFlagSet("box-publish", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&configPath, "config", "c", boxspiegel.DEFAULT_CONFIG_FILE, "Path to the configuration file (JSON or YAML)")
	flags.StringVar(&flagSettings.Name, "name", "", "The name of the box in the form org/boxname")
	flags.StringVar(&flagSettings.File, "file", "", "The path to the .box file, e.g. /home/user/mybox.box")
	flags.StringVar(&flagSettings.Provider, "provider", "", "The name of the provider for the box")
	flags.StringVar(&flagSettings.Description, "description", "", "The description of the box")
	flags.StringVar(&flagSettings.Version, "version", "", "The version number of the box")
	flags.StringVar(&flagSettings.BaseURL, "baseurl", "", "The base URL the box is going to be served from")
	flags.StringVar(&flagSettings.Server, "server", "", "The server to upload to, as [user@]host[:port]")
	flags.StringVar(&flagSettings.RemotePath, "remotepath", "", "Path on the server (or local directory for fs storage) to publish under")
	flags.StringVar(&flagSettings.StorageType, "storage-type", "", "Where to publish: scp, fs or s3")
	flags.StringVar(&flagSettings.S3Config.Bucket, "s3-bucket", "", "Bucket for s3 storage")
	flags.StringVar(&flagSettings.S3Config.Prefix, "s3-prefix", "", "Key prefix for s3 storage")
	flags.StringVar(&flagSettings.S3Config.Endpoint, "s3-endpoint", "", "Custom S3 endpoint")
	flags.StringVar(&flagSettings.SSHConfig.IdentityFile, "identity-file", "", "SSH private key to authenticate with")
	flags.StringVar(&flagSettings.SSHConfig.KnownHostsFile, "known-hosts", "", "known_hosts file to verify the server against")
	flags.StringVar(&flagSettings.Timeout, "timeout", "", "Network timeout, e.g. 30s")
	flags.IntVar(&retries, "retries", boxspiegel.DEFAULT_RETRIES, "Retries for transient failures reading the current catalog")
	flags.StringVar(&stagingDir, "staging-dir", "", "Parent directory for the temporary staging tree")
	flags.StringVar(&loggerType, "logger-type", "development", "Logger type (development or production)")
	if err := flags.Parse(argv); err != nil {
		return 1
	}
	if flags.Changed("retries") {
		flagSettings.Retries = &retries
	}

	logger, err := boxspiegel.NewLogger(loggerType)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = publish(ctx, configPath, flags.Changed("config"), flagSettings, stagingDir, sugar)
	if err != nil {
		sugar.Errorf("%v", err)
		if hint := boxspiegel.Hint(err); hint != "" {
			sugar.Errorf("--->>>> %s <<<<---", hint)
		}
		return 1
	}
	return 0
}

func publish(ctx context.Context, configPath string, explicitConfig bool, flagSettings boxspiegel.PublishSettings, stagingDir string, sugar *zap.SugaredLogger) error {
	settings, err := boxspiegel.LoadPublishSettings(configPath, explicitConfig)
	if err != nil {
		return err
	}
	config, err := settings.Overlay(flagSettings).Validate()
	if err != nil {
		return err
	}
	if !boxspiegel.StringInSlice(config.Release.Provider, boxspiegel.KnownProviders) {
		sugar.Warnf("provider %s is not a commonly used provider name", config.Release.Provider)
	}

	fetcher := boxspiegel.NewFetcher(boxspiegel.FetcherConfig{
		Timeout:    config.Timeout,
		MaxRetries: config.Retries,
		Sugar:      sugar,
	})
	storer, err := boxspiegel.NewBoxStorerFromConfig(ctx, config, fetcher, sugar)
	if err != nil {
		return err
	}

	sugar.Infof("publishing %s version %s (%s) via %s", config.Release.Box, config.Release.Version, config.Release.Provider, config.Storage)
	catalog, err := boxspiegel.NewPublisher(storer, stagingDir, sugar).Publish(ctx, config.Release)
	if err != nil {
		return err
	}
	sugar.Infof("catalog %s now lists %d versions at %s", catalog.Name, len(catalog.Versions), boxspiegel.CatalogURL(config.Release.BaseURL, config.Release.Box))
	return nil
}
