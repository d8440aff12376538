package accounts

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// prehash folds raw into a fixed 44-byte value so bcrypt's 72-byte input
// limit never rejects or truncates a password.
func prehash(raw string) []byte {
	sum := sha256.Sum256([]byte(raw))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// HashPassword returns a bcrypt hash of raw at the given cost. A cost of zero
// means bcrypt.DefaultCost.
func HashPassword(raw string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword(prehash(raw), cost)
	if err != nil {
		return "", fmt.Errorf("accounts: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether raw matches the stored bcrypt hash.
func CheckPassword(hash, raw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(raw)) == nil
}
