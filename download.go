package boxspiegel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// overridden in tests
var retrySleep = func(retries int) {
	time.Sleep(time.Duration(retries*retries) * time.Second)
}

type FetcherConfig struct {
	Timeout    time.Duration
	MaxRetries int
	Client     *http.Client
	Sugar      *zap.SugaredLogger
}

type Fetcher struct {
	client     *http.Client
	maxRetries int
	sugar      *zap.SugaredLogger
}

// NewFetcher builds a Fetcher whose connection setup and response headers are
// bounded by cfg.Timeout. Body transfer is not bounded so large boxes can
// stream; cancel the context to abort one.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
		transport.TLSHandshakeTimeout = timeout
		transport.ResponseHeaderTimeout = timeout
		client = &http.Client{Transport: transport}
	}
	sugar := cfg.Sugar
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	return &Fetcher{client: client, maxRetries: cfg.MaxRetries, sugar: sugar}
}

// statusError is a non-2xx response. 5xx responses are worth retrying.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server failed to fulfill request for %s: %d %s", e.url, e.code, http.StatusText(e.code))
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return errors.Is(err, ErrTransport)
}

// get issues a GET and hands a 2xx body to consume, retrying transient
// failures up to maxRetries times.
func (f *Fetcher) get(ctx context.Context, rawURL string, consume func(io.Reader) error) error {
	var lastErr error
	for retries := 0; retries <= f.maxRetries; retries++ {
		if retries > 0 {
			f.sugar.Warnf("retrying %s (attempt %d of %d) after: %v", rawURL, retries+1, f.maxRetries+1, lastErr)
			retrySleep(retries)
		}
		lastErr = f.getOnce(ctx, rawURL, consume)
		if lastErr == nil || !isRetryable(lastErr) || ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		return nil
	}

	var se *statusError
	if errors.As(lastErr, &se) {
		if se.code == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, rawURL)
		}
		return fmt.Errorf("%w: %w", ErrTransport, se)
	}
	return lastErr
}

func (f *Fetcher) getOnce(ctx context.Context, rawURL string, consume func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: making HTTP request for %s: %w", ErrConfiguration, rawURL, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to connect to server: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{url: rawURL, code: resp.StatusCode}
	}
	return consume(resp.Body)
}

// FetchCatalog downloads and parses the catalog at catalogURL.
func (f *Fetcher) FetchCatalog(ctx context.Context, catalogURL string) (*Catalog, error) {
	f.sugar.Debugf("fetching catalog %s", catalogURL)

	var data []byte
	err := f.get(ctx, catalogURL, func(body io.Reader) error {
		var err error
		data, err = io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("%w: reading catalog body: %w", ErrTransport, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", catalogURL, err)
	}
	f.sugar.Debugf("catalog %s lists %d versions", catalog.Name, len(catalog.Versions))
	return catalog, nil
}

// ArtifactFileName is the local file name for a descriptor: the last element
// of its URL path.
func ArtifactFileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: parsing artifact URL %s: %w", ErrMalformedCatalog, rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("%w: artifact URL %s has no file name", ErrMalformedCatalog, rawURL)
	}
	return name, nil
}

// FetchAndVerify downloads entry into opts.DestinationDir, verifies it against
// the catalog checksum and optionally extracts it. The archive only appears
// under its final name once verification has passed.
func (f *Fetcher) FetchAndVerify(ctx context.Context, entry CatalogEntry, opts FetchOptions) (FetchResult, error) {
	var result FetchResult

	kind, err := ParseChecksumKind(string(entry.ChecksumType))
	if err != nil {
		return result, err
	}
	fileName, err := ArtifactFileName(entry.URL)
	if err != nil {
		return result, err
	}
	destDir := opts.DestinationDir
	if destDir == "" {
		destDir = "."
	}
	finalPath := filepath.Join(destDir, fileName)

	f.sugar.Infof("downloading %s to %s", entry.URL, finalPath)

	partial, err := os.CreateTemp(destDir, "."+fileName+"-*"+PARTIAL_DOWNLOAD_SUFFIX)
	if err != nil {
		return result, fmt.Errorf("%w: creating download file: %w", ErrIO, err)
	}
	partialPath := partial.Name()
	committed := false
	defer func() {
		partial.Close()
		if !committed {
			os.Remove(partialPath)
		}
	}()

	err = f.get(ctx, entry.URL, func(body io.Reader) error {
		// a retried attempt starts over
		if _, err := partial.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		if err := partial.Truncate(0); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		if _, err := io.Copy(partial, body); err != nil {
			return fmt.Errorf("%w: downloading box file: %w", ErrTransport, err)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if err := partial.Close(); err != nil {
		return result, fmt.Errorf("%w: %w", ErrIO, err)
	}

	actual, err := Digest(partialPath, kind)
	if err != nil {
		return result, err
	}
	if !strings.EqualFold(actual, strings.TrimSpace(entry.Checksum)) {
		return result, &IntegrityError{Path: finalPath, Kind: kind, Expected: entry.Checksum, Actual: actual}
	}

	if err := os.Rename(partialPath, finalPath); err != nil {
		return result, fmt.Errorf("%w: moving download into place: %w", ErrIO, err)
	}
	committed = true
	result.ArchivePath = finalPath
	f.sugar.Infof("box downloaded and validated (%s %s)", kind, actual)

	if !opts.Decompress {
		return result, nil
	}

	extractDir := opts.ExtractDir
	if extractDir == "" {
		extractDir = destDir
	}
	files, err := ExtractArchive(finalPath, extractDir)
	if err != nil {
		return result, err
	}
	result.ExtractDir = extractDir

	if treeHash, err := TreeHash(extractDir, files); err != nil {
		f.sugar.Warnf("unable to hash extracted tree %s: %v", extractDir, err)
	} else {
		result.TreeHash = treeHash
		f.sugar.Infof("extracted %s into %s (%s)", fileName, extractDir, treeHash)
	}

	if opts.KeepArchive {
		f.sugar.Infof("downloaded box has been kept at %s", finalPath)
		return result, nil
	}
	if err := os.Remove(finalPath); err != nil {
		return result, fmt.Errorf("%w: removing archive after extraction: %w", ErrIO, err)
	}
	result.ArchivePath = ""
	return result, nil
}
