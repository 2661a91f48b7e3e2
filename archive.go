package boxspiegel

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type ArchiveFormat string

const (
	ARCHIVE_TAR     ArchiveFormat = "tar"
	ARCHIVE_TAR_GZ  ArchiveFormat = "tar.gz"
	ARCHIVE_TAR_ZST ArchiveFormat = "tar.zst"
	ARCHIVE_TAR_LZ4 ArchiveFormat = "tar.lz4"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// DetectArchiveFormat sniffs the compression wrapper of a box archive from its
// leading bytes. Anything unrecognised is assumed to be a bare tar stream.
func DetectArchiveFormat(header []byte) ArchiveFormat {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return ARCHIVE_TAR_GZ
	case bytes.HasPrefix(header, zstdMagic):
		return ARCHIVE_TAR_ZST
	case bytes.HasPrefix(header, lz4Magic):
		return ARCHIVE_TAR_LZ4
	}
	return ARCHIVE_TAR
}

func decompressingReader(r *bufio.Reader) (io.Reader, func(), error) {
	header, err := r.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}

	switch DetectArchiveFormat(header) {
	case ARCHIVE_TAR_GZ:
		gz, err := kgzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { gz.Close() }, nil
	case ARCHIVE_TAR_ZST:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case ARCHIVE_TAR_LZ4:
		return lz4.NewReader(r), func() {}, nil
	}
	return r, func() {}, nil
}

// ExtractArchive unpacks the box archive at path into dest and returns the
// slash-separated paths of the regular files it wrote. Entries that would land
// outside dest are rejected.
func ExtractArchive(path string, dest string) ([]string, error) {
	extractErr := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrExtraction, path, fmt.Sprintf(format, args...))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening archive %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	stream, closeStream, err := decompressingReader(bufio.NewReader(f))
	if err != nil {
		return nil, extractErr("%v", err)
	}
	defer closeStream()

	if err := os.MkdirAll(dest, os.FileMode(0755)); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrIO, dest, err)
	}

	var files []string
	entries := 0
	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, extractErr("%v", err)
		}
		entries++

		name := filepath.Clean(filepath.FromSlash(hdr.Name))
		if name == "." {
			continue
		}
		if !filepath.IsLocal(name) {
			return nil, extractErr("entry %q escapes the destination directory", hdr.Name)
		}
		target := filepath.Join(dest, name)
		if link, err := symlinkAlongPath(dest, name); err != nil {
			return nil, err
		} else if link != "" {
			return nil, extractErr("entry %q passes through symlink %q", hdr.Name, link)
		}
		// a later entry replaces an earlier symlink rather than writing through it
		if err := removeSymlink(target); err != nil {
			return nil, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()|0700); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrIO, err)
			}
		case tar.TypeReg:
			if err := writeArchiveFile(tr, target, hdr.FileInfo().Mode().Perm()); err != nil {
				if errors.Is(err, ErrIO) {
					return nil, err
				}
				return nil, extractErr("entry %q: %v", hdr.Name, err)
			}
			files = append(files, filepath.ToSlash(name))
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !filepath.IsLocal(filepath.Join(filepath.Dir(name), hdr.Linkname)) {
				return nil, extractErr("symlink %q points outside the destination directory", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), os.FileMode(0755)); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrIO, err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrIO, err)
			}
		case tar.TypeLink:
			linkName := filepath.Clean(filepath.FromSlash(hdr.Linkname))
			if !filepath.IsLocal(linkName) {
				return nil, extractErr("hard link %q points outside the destination directory", hdr.Name)
			}
			if link, err := symlinkAlongPath(dest, linkName); err != nil {
				return nil, err
			} else if link != "" {
				return nil, extractErr("hard link %q passes through symlink %q", hdr.Name, link)
			}
			if err := os.Link(filepath.Join(dest, linkName), target); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrIO, err)
			}
			files = append(files, filepath.ToSlash(name))
		default:
			// devices, fifos and pax metadata have no place in a box
		}
	}

	if entries == 0 {
		return nil, extractErr("archive contains no entries")
	}
	return files, nil
}

// symlinkAlongPath returns the first parent directory of name, relative to
// dest, that is a symlink. Nothing is ever extracted below a symlink.
func symlinkAlongPath(dest string, name string) (string, error) {
	dir := filepath.Dir(name)
	if dir == "." {
		return "", nil
	}
	current := dest
	rel := ""
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		current = filepath.Join(current, part)
		rel = filepath.Join(rel, part)
		info, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrIO, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return filepath.ToSlash(rel), nil
		}
	}
	return "", nil
}

func removeSymlink(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func writeArchiveFile(r io.Reader, target string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), os.FileMode(0755)); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0600)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}
