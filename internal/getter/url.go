package getter

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// IsFileURL reports whether rawURL uses the file scheme.
func IsFileURL(rawURL string) bool {
	return strings.HasPrefix(strings.ToLower(rawURL), "file:")
}

// LocalPath converts a file:// URL into a local filesystem path.
//
//	LocalPath("file:///srv/maven/io/acme/a.json") → "/srv/maven/io/acme/a.json"
func LocalPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", rawURL, err)
	}

	if u.Scheme != "file" {
		return "", fmt.Errorf("%s is not a file URL", rawURL)
	}

	p := u.Path
	if p == "" {
		p = u.Opaque
	}

	if u.Host != "" && u.Host != "localhost" {
		p = "//" + u.Host + p
	}

	return filepath.FromSlash(p), nil
}

// FileURL converts a local path into a file:// URL.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
