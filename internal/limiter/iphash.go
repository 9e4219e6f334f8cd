package limiter

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIP is the one-way key stored instead of the client IP
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
