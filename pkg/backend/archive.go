package backend

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/YArzumanyan/data-factory/pkg/errors"
)

// unpackArchive sniffs path's content and unpacks the recognized archive
// format into dst. Detection never consults the filename or extension: a
// ZIP renamed to end in .tar.gz still unpacks as a ZIP.
func unpackArchive(path, dst string) error {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return errors.Wrap(errors.CodeUnsupportedArchive, err, "sniffing archive %s", path)
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errors.Wrap(errors.CodeUnsupportedArchive, err, "creating unpack destination %s", dst)
	}

	switch {
	case mime.Is("application/zip"):
		return unpackZip(path, dst)
	case mime.Is("application/gzip"):
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(errors.CodeUnsupportedArchive, err, "opening archive %s", path)
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return errors.Wrap(errors.CodeUnsupportedArchive, err, "reading gzip archive %s", path)
		}
		defer gz.Close()
		return unpackTar(gz, dst)
	case mime.Is("application/x-bzip2"):
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(errors.CodeUnsupportedArchive, err, "opening archive %s", path)
		}
		defer f.Close()
		return unpackTar(bzip2.NewReader(f), dst)
	case mime.Is("application/x-tar"):
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(errors.CodeUnsupportedArchive, err, "opening archive %s", path)
		}
		defer f.Close()
		return unpackTar(f, dst)
	default:
		return errors.New(errors.CodeUnsupportedArchive, "unrecognized archive format %q for %s", mime.String(), path)
	}
}

func unpackZip(path, dst string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return errors.Wrap(errors.CodeUnsupportedArchive, err, "opening zip archive %s", path)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dst, f.Name)
		if err != nil {
			return errors.Wrap(errors.CodeUnsupportedArchive, err, "unpacking zip entry %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrap(errors.CodeUnsupportedArchive, err, "creating directory %s", target)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrap(errors.CodeUnsupportedArchive, err, "creating directory for %s", target)
		}
		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return errors.Wrap(errors.CodeUnsupportedArchive, err, "opening zip entry %s", f.Name)
	}
	defer src.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
	if err != nil {
		return errors.Wrap(errors.CodeUnsupportedArchive, err, "creating file %s", target)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return errors.Wrap(errors.CodeUnsupportedArchive, err, "writing file %s", target)
	}
	return nil
}

func unpackTar(r io.Reader, dst string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(errors.CodeUnsupportedArchive, err, "reading tar archive")
		}

		target, err := safeJoin(dst, hdr.Name)
		if err != nil {
			return errors.Wrap(errors.CodeUnsupportedArchive, err, "unpacking tar entry %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrap(errors.CodeUnsupportedArchive, err, "creating directory %s", target)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrap(errors.CodeUnsupportedArchive, err, "creating directory for %s", target)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return errors.Wrap(errors.CodeUnsupportedArchive, err, "creating file %s", target)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return errors.Wrap(errors.CodeUnsupportedArchive, err, "writing file %s", target)
			}
			out.Close()
		}
	}
}

// safeJoin joins dst and name, rejecting any entry that would escape dst via
// ".." path traversal.
func safeJoin(dst, name string) (string, error) {
	target := filepath.Join(dst, name)
	if target != dst && !filepathHasPrefix(target, dst) {
		return "", errors.New(errors.CodeUnsupportedArchive, "illegal archive entry path %q", name)
	}
	return target, nil
}

func filepathHasPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.' &&
		(len(rel) == 2 || rel[2] == filepath.Separator)
}
