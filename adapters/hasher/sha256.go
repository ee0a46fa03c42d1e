package hasher

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/satriahrh/white-fusion/domain"
)

// New returns a domain.Hasher computing HMAC-SHA256 under key.
func New(key []byte) domain.Hasher { return hmacHasher{key: key} }

type hmacHasher struct {
	key []byte
}

func (h hmacHasher) Hash(data []byte) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
