package boxspiegel

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/sumdb/dirhash"
)

// ChecksumKind names a digest algorithm as it appears in a catalog's
// checksum_type field.
type ChecksumKind string

const (
	CHECKSUM_SHA1   ChecksumKind = "sha1"
	CHECKSUM_MD5    ChecksumKind = "md5"
	CHECKSUM_SHA256 ChecksumKind = "sha256"
	CHECKSUM_SHA512 ChecksumKind = "sha512"
)

// MD5 only guards against accidental corruption; it is kept because
// historical catalogs carry md5 entries.
func (k ChecksumKind) newHash() (hash.Hash, error) {
	switch k {
	case CHECKSUM_SHA1:
		return sha1.New(), nil
	case CHECKSUM_MD5:
		return md5.New(), nil
	case CHECKSUM_SHA256:
		return sha256.New(), nil
	case CHECKSUM_SHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedChecksumKind, string(k))
}

func ParseChecksumKind(s string) (ChecksumKind, error) {
	k := ChecksumKind(strings.ToLower(strings.TrimSpace(s)))
	if _, err := k.newHash(); err != nil {
		return "", err
	}
	return k, nil
}

// DigestReader hashes r in fixed-size chunks and returns the lowercase hex digest.
func DigestReader(r io.Reader, kind ChecksumKind) (string, error) {
	hasher, err := kind.newHash()
	if err != nil {
		return "", err
	}
	buf := make([]byte, DIGEST_CHUNK_SIZE)
	if _, err := io.CopyBuffer(hasher, r, buf); err != nil {
		return "", fmt.Errorf("%w: reading data to checksum: %w", ErrIO, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func Digest(path string, kind ChecksumKind) (string, error) {
	if _, err := kind.newHash(); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	sum, err := DigestReader(f, kind)
	if err != nil {
		return "", fmt.Errorf("checksumming %s: %w", path, err)
	}
	return sum, nil
}

// TreeHash returns the h1: hash over files (slash-separated, relative to
// root), the same hash the Go module system records for module trees.
func TreeHash(root string, files []string) (string, error) {
	hash, err := dirhash.Hash1(files, func(name string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(root, filepath.FromSlash(name)))
	})
	if err != nil {
		return "", fmt.Errorf("%w: hashing tree %s: %w", ErrIO, root, err)
	}
	return hash, nil
}
