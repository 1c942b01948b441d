// Package bundle fingerprints built web bundles and remembers which
// fingerprint was last published to each channel.
package bundle

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"
)

// Digest hashes every regular file under dir, in lexical path order, along
// with its slash-separated relative path. Two bundles with identical content
// and layout have the same digest regardless of timestamps.
func Digest(dir string) (digest.Digest, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("stat bundle %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("bundle %s is not a directory", dir)
	}

	digester := digest.Canonical.Digester()
	h := digester.Hash()

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(h, "%s\x00", filepath.ToSlash(rel))

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := io.Copy(h, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(h, "\x00%d\x00", n)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hashing bundle %s: %w", dir, err)
	}
	return digester.Digest(), nil
}
