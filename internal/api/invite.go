package api

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Caretaker invite codes are 10 characters shown as XXXX-XXXX-XX. The first
// group is stored in clear as a lookup prefix; the full code only as a bcrypt hash.

// codeAlphabet excludes 0, O, 1, I and L.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const (
	codeLength   = 10
	prefixLength = 4
)

// CodeExpiration is how long an unredeemed invite code stays valid.
const CodeExpiration = 48 * time.Hour

// GenerateInviteCode returns a random code formatted as XXXX-XXXX-XX.
func GenerateInviteCode() (string, error) {
	// largest multiple of the alphabet size that fits in a byte, to keep the draw uniform
	limit := byte(256 - 256%len(codeAlphabet))

	code := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)
	for len(code) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == codeLength {
				break
			}
		}
	}
	return FormatCode(string(code)), nil
}

// FormatCode inserts the display dashes into a normalized code.
func FormatCode(code string) string {
	code = NormalizeCode(code)
	if len(code) != codeLength {
		return code
	}
	return code[:4] + "-" + code[4:8] + "-" + code[8:]
}

// HashCode creates a bcrypt hash of the code for storage.
func HashCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(NormalizeCode(code)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}
	return string(hash), nil
}

// VerifyCode checks if the provided code matches the hash.
func VerifyCode(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(NormalizeCode(code))) == nil
}

// NormalizeCode removes dashes and spaces and converts to uppercase.
func NormalizeCode(code string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.ToUpper(code))
}

// GetCodePrefix returns the lookup prefix of a code.
func GetCodePrefix(code string) string {
	normalized := NormalizeCode(code)
	if len(normalized) < prefixLength {
		return normalized
	}
	return normalized[:prefixLength]
}

// FormatExpiresIn formats the time remaining until expiration.
func FormatExpiresIn(expiresAt time.Time) string {
	return formatRemaining(time.Until(expiresAt))
}

func formatRemaining(remaining time.Duration) string {
	if remaining <= 0 {
		return "expired"
	}
	hours := int(remaining.Hours())
	minutes := int(remaining.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// IsValidCodeFormat checks if the code has the correct length and alphabet.
func IsValidCodeFormat(code string) bool {
	normalized := NormalizeCode(code)
	if len(normalized) != codeLength {
		return false
	}
	for _, c := range normalized {
		if !strings.ContainsRune(codeAlphabet, c) {
			return false
		}
	}
	return true
}
