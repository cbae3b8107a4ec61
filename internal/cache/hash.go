package cache

import (
	"crypto/md5"
	"encoding/hex"
)

// Key derives the cache key for a request URL. The key is the md5 hex digest
// of the raw URL string: 32 characters, deterministic, and what the cache
// store actually sees in place of the URL itself.
func Key(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
