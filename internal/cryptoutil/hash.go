package cryptoutil

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashEqual compares two hex-encoded digests in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SHA256Hex returns the lowercase hex SHA-256 of data.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ShortHash returns the first n characters of a hex digest, or the whole
// digest when it is shorter.
func ShortHash(digest string, n int) string {
	if n <= 0 || len(digest) <= n {
		return digest
	}
	return digest[:n]
}

// MatchETag reports whether an If-None-Match header value lists tag.
// Weak validators match their strong form; "*" matches anything.
func MatchETag(header, tag string) bool {
	if header == "" || tag == "" {
		return false
	}
	tag = strings.Trim(tag, `"`)
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" {
			return true
		}
		cand = strings.Trim(strings.TrimPrefix(cand, "W/"), `"`)
		if HashEqual(cand, tag) {
			return true
		}
	}
	return false
}
