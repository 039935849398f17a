package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Brownie44l1/extension-admin/internal/models"
)

// GenerateOTP generates a 6-character code from the human-legible alphabet.
func GenerateOTP() (string, error) {
	return GenerateCode(models.OTPLength, models.OTPAlphabet)
}

// GenerateCode draws length symbols uniformly from alphabet using crypto/rand.
func GenerateCode(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", errors.New("code length must be positive")
	}
	if len(alphabet) < 2 {
		return "", errors.New("alphabet too small")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}

	return b.String(), nil
}
