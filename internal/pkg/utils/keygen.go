package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const base62Chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomToken returns prefix followed by n random base62 characters.
func RandomToken(prefix string, n int) (string, error) {
	var sb strings.Builder
	sb.Grow(len(prefix) + n)
	sb.WriteString(prefix)

	limit := big.NewInt(int64(len(base62Chars)))
	for range n {
		num, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(base62Chars[num.Int64()])
	}
	return sb.String(), nil
}
