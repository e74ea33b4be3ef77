package util

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const tokenBytes = 32

// NewToken issues the deletion capability: 32 bytes of crypto/rand, base64url
// encoded. It is drawn independently of the paste id and can never be
// re-derived; losing it means losing the ability to delete.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "rand fail")
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	Wipe(buf)
	return token, nil
}

// HashToken digests a token for at-rest storage. Only the digest is persisted,
// so a leaked database never reveals usable capabilities.
func HashToken(token string) []byte {
	sum := blake2b.Sum256([]byte(token))
	return sum[:]
}

// VerifyToken compares a presented token against a stored digest without
// short-circuiting on first mismatch.
func VerifyToken(token string, storedHash []byte) bool {
	if len(storedHash) != blake2b.Size256 {
		return false
	}
	sum := blake2b.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(sum[:], storedHash) == 1
}
