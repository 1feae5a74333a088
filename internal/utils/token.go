package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
)

// GenerateVerificationCode produces a five digit one-time code.
func GenerateVerificationCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90000))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 10000, nil
}

// GenerateResetToken returns the token handed to the user and the digest
// stored in its place. Only the digest ever touches the database.
func GenerateResetToken() (token string, hashed string, err error) {
	buf := make([]byte, 20)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, HashToken(token), nil
}

// HashToken mirrors the digest applied before a reset token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
