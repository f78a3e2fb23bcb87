package bigsegments

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashForContextKey computes the hash under which one context's membership is stored, matching
// the hash the store adapter (and the relay proxy populating it) computes for the same key.
func HashForContextKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return base64.StdEncoding.EncodeToString(sum[:])
}
