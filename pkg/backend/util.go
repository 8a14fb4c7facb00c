package backend

import (
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/YArzumanyan/data-factory/pkg/errors"
)

// shortID returns the trailing identifier segment of an IRI, splitting on
// the last '#' or '/', used to disambiguate step workspace directories
// whose labels collide.
func shortID(iri string) string {
	if idx := strings.LastIndexByte(iri, '#'); idx >= 0 {
		return iri[idx+1:]
	}
	if idx := strings.LastIndexByte(iri, '/'); idx >= 0 {
		return iri[idx+1:]
	}
	return iri
}

// basename extracts the final path segment of a URL, ignoring its query
// and fragment, for use as a downloaded artifact's filename.
func basename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "download"
	}
	return base
}

// copyTree recursively copies the directory tree rooted at src into dst,
// creating dst and any intermediate directories as needed.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(errors.CodeFetch, err, "creating directory for %s", dst)
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(errors.CodeFetch, err, "opening %s", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrap(errors.CodeFetch, err, "stat %s", src)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return errors.Wrap(errors.CodeFetch, err, "creating %s", dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(errors.CodeFetch, err, "copying %s to %s", src, dst)
	}
	return nil
}
