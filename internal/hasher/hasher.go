// Package hasher computes content hashes used for dedup detection.
//
// A ContentHash is the MD5 digest of a byte stream, URL-safe base64
// encoded and truncated to 22 characters (the record store's format).
// Hashes are only ever compared for equality; they never name a record.
// A collision is treated as "same content".
package hasher

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// Length is the number of characters in a ContentHash.
const Length = 22

// ContentHash is a fixed-length digest of file content.
type ContentHash string

func (h ContentHash) String() string {
	return string(h)
}

// HashBytes hashes content. Pure and stable across processes.
func HashBytes(content []byte) ContentHash {
	sum := md5.Sum(content)
	return encode(sum[:])
}

// HashReader hashes everything read from r.
func HashReader(r io.Reader) (ContentHash, int64, error) {
	h := md5.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("hash reader: %w", err)
	}
	return encode(h.Sum(nil)), n, nil
}

// HashFile hashes the on-disk bytes of path.
func HashFile(path string) (ContentHash, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("hash file: %w", err)
	}
	defer f.Close()

	hash, n, err := HashReader(f)
	if err != nil {
		return "", 0, fmt.Errorf("hash file %s: %w", path, err)
	}
	return hash, n, nil
}

// HashCanonical hashes the canonical JSON encoding of v (see
// MarshalCanonical). Used for composite streams whose byte layout is not
// stable, such as notebook JSON.
func HashCanonical(v any) (ContentHash, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash canonical: %w", err)
	}
	return HashBytes(data), nil
}

func encode(sum []byte) ContentHash {
	return ContentHash(base64.URLEncoding.EncodeToString(sum)[:Length])
}
