package boxspiegel

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration           = errors.New("configuration error")
	ErrTransport               = errors.New("transport error")
	ErrNotFound                = errors.New("not found")
	ErrMalformedCatalog        = errors.New("malformed catalog")
	ErrProviderNotFound        = errors.New("provider not found")
	ErrEmptyCatalog            = errors.New("catalog has no versions")
	ErrIntegrity               = errors.New("checksum mismatch")
	ErrDuplicateVersion        = errors.New("version already published")
	ErrExtraction              = errors.New("extraction failed")
	ErrUnsupportedChecksumKind = errors.New("unsupported checksum type")
	ErrIO                      = errors.New("i/o error")
)

// IntegrityError reports a downloaded artifact whose digest does not match
// the catalog. The artifact must not be used.
type IntegrityError struct {
	Path     string
	Kind     ChecksumKind
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s %s is %s, expected %s", ErrIntegrity, e.Path, e.Kind, e.Actual, e.Expected)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// Hint returns an operator-facing remediation line for err, or "" when there
// is nothing more useful to say than the error itself.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "check the configuration file and command line flags"
	case errors.Is(err, ErrNotFound):
		return "check the URL; the server reported that the resource does not exist"
	case errors.Is(err, ErrTransport):
		return "check the network connection and access to the remote server"
	case errors.Is(err, ErrMalformedCatalog):
		return "the URL does not serve a valid box catalog, please check the URL"
	case errors.Is(err, ErrProviderNotFound):
		return "choose a provider listed in the catalog"
	case errors.Is(err, ErrEmptyCatalog):
		return "publish at least one version before fetching"
	case errors.Is(err, ErrIntegrity):
		return "the downloaded box was discarded; retry or contact the publisher"
	case errors.Is(err, ErrDuplicateVersion):
		return "bump the box version and publish again"
	case errors.Is(err, ErrExtraction):
		return "the box archive is corrupt or in an unsupported format"
	case errors.Is(err, ErrUnsupportedChecksumKind):
		return "the catalog uses a checksum type this tool cannot verify"
	}
	return ""
}
