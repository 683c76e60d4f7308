package fetcher

import (
	"github.com/klauspost/compress/zip"
	"github.com/pingcap/errors"
)

// readArchiveEntry returns the contents of name inside the zip archive at
// path. An entry larger than limit is an error.
func readArchiveEntry(path, name string, limit int64) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening archive %s", path)
	}
	defer zr.Close() //nolint:errcheck // read-only archive

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", name)
		}
		defer rc.Close() //nolint:errcheck // read-only entry

		data, err := readLimited(rc, limit)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", name)
		}

		return data, nil
	}

	return nil, errors.Errorf("%s not found in archive", name)
}
