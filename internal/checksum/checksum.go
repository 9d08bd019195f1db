// Package checksum computes the content digests used to identify bundle files.
// The same digest is produced at build time and at run time.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
)

// Digest returns the lowercase hex digest of everything read from r.
// An empty string is returned if reading fails.
func Digest(r io.Reader) string {
	if r == nil {
		return ""
	}

	hash := md5.New()
	if _, err := io.Copy(hash, r); err != nil {
		slog.Debug("checksum read", "error", err)
		return ""
	}

	return hex.EncodeToString(hash.Sum(nil))
}

// DigestBytes returns the lowercase hex digest of b.
func DigestBytes(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// FileDigest returns the digest of the file at path, or "" if it can't be read.
func FileDigest(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		return ""
	}

	return Digest(file)
}

// Match reports whether two digests are known and equal.
// An empty digest is unknown and never matches.
func Match(a, b string) bool {
	return a != "" && b != "" && a == b
}
