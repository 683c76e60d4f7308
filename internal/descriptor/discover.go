package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Directory names under the working directory.
const (
	PlatformsDir  = "platforms"
	ExtensionsDir = "extensions"
)

// descriptorGlob matches descriptor files directly inside a kind directory.
const descriptorGlob = "*.{yaml,yml}"

// Entry is a descriptor file found on disk.
type Entry struct {
	Path string
	Kind Kind
}

// Discover lists platform descriptors, then extension descriptors, each sorted
// by file name. A missing kind directory contributes nothing.
func Discover(workDir string) ([]Entry, error) {
	var entries []Entry

	for _, kd := range []struct {
		dir  string
		kind Kind
	}{
		{PlatformsDir, KindPlatform},
		{ExtensionsDir, KindExtension},
	} {
		found, err := discoverKind(filepath.Join(workDir, kd.dir), kd.kind)
		if err != nil {
			return nil, err
		}

		entries = append(entries, found...)
	}

	return entries, nil
}

func discoverKind(dir string, kind Kind) ([]Entry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), descriptorGlob, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, fmt.Errorf("listing descriptors in %s: %w", dir, err)
	}

	sort.Strings(matches)

	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		entries = append(entries, Entry{Path: filepath.Join(dir, filepath.FromSlash(m)), Kind: kind})
	}

	return entries, nil
}
