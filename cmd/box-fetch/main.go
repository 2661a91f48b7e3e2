// box-fetch downloads the latest version of a box for one provider from a
// catalog URL, verifies its checksum and optionally unpacks it.
package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/erhudy/boxspiegel"
)

type fetchArgs struct {
	url         string
	provider    string
	outputDir   string
	extractDir  string
	decompress  bool
	keepArchive bool
	semver      bool
	timeout     time.Duration
	retries     int
	loggerType  string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(argv []string, stderr io.Writer) int {
	var args fetchArgs
	flags := pflag.NewFlagSet("box-fetch", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&args.url, "url", "u", "", "URL of the box catalog you want to download from (required)")
	flags.StringVarP(&args.provider, "provider", "p", boxspiegel.DEFAULT_PROVIDER, "Provider of the box you want to download")
	flags.StringVarP(&args.outputDir, "outputdir", "o", ".", "Directory to store the downloaded box in")
	flags.StringVar(&args.extractDir, "extract-dir", "", "Directory to decompress the box into (defaults to the output directory)")
	flags.BoolVarP(&args.decompress, "decompress", "d", false, "Decompress the downloaded box")
	flags.BoolVarP(&args.keepArchive, "keep", "k", false, "Keep the downloaded box after decompressing it")
	flags.BoolVar(&args.semver, "semver", false, "Order versions semantically instead of lexicographically")
	flags.DurationVar(&args.timeout, "timeout", boxspiegel.DEFAULT_TIMEOUT, "Connection and response header timeout")
	flags.IntVar(&args.retries, "retries", boxspiegel.DEFAULT_RETRIES, "Retries for transient network failures")
	flags.StringVar(&args.loggerType, "logger-type", "development", "Logger type (development or production)")
	if err := flags.Parse(argv); err != nil {
		return 1
	}

	logger, err := boxspiegel.NewLogger(args.loggerType)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fetch(ctx, args, sugar); err != nil {
		sugar.Errorf("%v", err)
		if hint := boxspiegel.Hint(err); hint != "" {
			sugar.Errorf("--->>>> %s <<<<---", hint)
		}
		return 1
	}
	return 0
}

func validate(args *fetchArgs) error {
	if args.url == "" {
		return fmt.Errorf("%w: --url is required", boxspiegel.ErrConfiguration)
	}
	u, err := url.Parse(args.url)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: entered URL %q is not valid", boxspiegel.ErrConfiguration, args.url)
	}
	args.provider = strings.ToLower(strings.TrimSpace(args.provider))
	if args.provider == "" {
		return fmt.Errorf("%w: --provider must not be empty", boxspiegel.ErrConfiguration)
	}
	info, err := os.Stat(args.outputDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: outputdir %s isn't a valid directory", boxspiegel.ErrConfiguration, args.outputDir)
	}
	if args.retries < 0 {
		return fmt.Errorf("%w: --retries must not be negative", boxspiegel.ErrConfiguration)
	}
	return nil
}

func fetch(ctx context.Context, args fetchArgs, sugar *zap.SugaredLogger) error {
	if err := validate(&args); err != nil {
		return err
	}
	if !boxspiegel.StringInSlice(args.provider, boxspiegel.KnownProviders) {
		sugar.Warnf("provider %s is not one of %s, trying it anyway", args.provider, strings.Join(boxspiegel.KnownProviders, ", "))
	}
	if args.keepArchive && !args.decompress {
		sugar.Warnf("-k has no effect without -d")
	}

	fetcher := boxspiegel.NewFetcher(boxspiegel.FetcherConfig{
		Timeout:    args.timeout,
		MaxRetries: args.retries,
		Sugar:      sugar,
	})

	catalog, err := fetcher.FetchCatalog(ctx, args.url)
	if err != nil {
		return err
	}

	resolver := boxspiegel.Resolver{Compare: boxspiegel.LexicographicCompare}
	if args.semver {
		resolver.Compare = boxspiegel.SemverCompare
	}
	resolution, err := resolver.ResolveLatest(catalog, args.provider)
	if err != nil {
		return err
	}
	sugar.Infof("latest %s version of %s is %s", args.provider, catalog.Name, resolution.Version)

	result, err := fetcher.FetchAndVerify(ctx, resolution.Entry, boxspiegel.FetchOptions{
		DestinationDir: args.outputDir,
		ExtractDir:     args.extractDir,
		Decompress:     args.decompress,
		KeepArchive:    args.keepArchive,
	})
	if err != nil {
		return err
	}

	if result.ArchivePath != "" {
		sugar.Infof("box available at %s", result.ArchivePath)
	}
	if result.ExtractDir != "" {
		sugar.Infof("box decompressed into %s", result.ExtractDir)
	}
	return nil
}
