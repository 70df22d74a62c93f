// Package digest computes content digests for deduplication and caches them
// per scan process so unchanged files are not re-hashed on repeated scans.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChunkSize is the read granularity for streaming hashing. Memory use stays
// independent of file size.
const ChunkSize = 64 * 1024

// HashReader streams r in ChunkSize chunks and returns the lowercase hex
// SHA-256 digest. A partial read never yields a digest: any read error is
// returned and the caller decides whether to re-attempt.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading content: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile opens path and returns its streamed digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sum, err := HashReader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return sum, nil
}

// HashBytes returns the digest of an in-memory buffer (upload and mailbox
// channels, which never touch the filesystem).
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
