package sources

import (
	"crypto/sha256"
	"fmt"
)

func generateHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// shortID derives a stable article id from content that has no id of its own.
func shortID(prefix, content string) string {
	return prefix + "_" + generateHash(content)[:16]
}
