package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashOwnerKey returns a filesystem-safe namespace for a principal such as
// "key:ab12" or "sub:123". Raw principals never appear in storage keys.
func HashOwnerKey(s string) string {
	if s == "" {
		s = "anonymous"
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
