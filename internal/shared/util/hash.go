package util

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// HashBytes returns the hex xxh3 digest of the concatenated parts.
func HashBytes(parts ...[]byte) string {
	h := xxh3.New()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashFile streams path through xxh3.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
