package align

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// packTree zips every regular file under srcDir into zipPath, with
// entry names relativized to srcDir so the archive unpacks flat.
func packTree(srcDir, zipPath string) error {
	if err := os.MkdirAll(filepath.Dir(zipPath), 0755); err != nil {
		return err
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		return err
	})
	if err != nil {
		zw.Close()
		out.Close()
		os.Remove(zipPath)
		return err
	}

	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(zipPath)
		return err
	}
	return out.Close()
}
