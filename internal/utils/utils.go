package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	idAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idSuffixLen = 10

	accountNumberPrefix = "01"
	accountNumberLen    = 8
)

// randomString draws n characters from charset using crypto/rand.
func randomString(charset string, n int) string {
	limit := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, _ := rand.Int(rand.Reader, limit)
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}

// GenerateID returns an identifier of the form "<prefix>-<suffix>" with a
// 10 character mixed-case alphanumeric suffix.
func GenerateID(prefix string) string {
	return prefix + "-" + randomString(idAlphabet, idSuffixLen)
}

// GenerateAccountNumber returns a fresh 8 digit account number. All ledger
// accounts share the "01" sort prefix.
func GenerateAccountNumber() string {
	return accountNumberPrefix + randomString("0123456789", accountNumberLen-len(accountNumberPrefix))
}

// ValidateAccountNumber reports whether s is exactly 8 digits beginning
// with "01".
func ValidateAccountNumber(s string) bool {
	if len(s) != accountNumberLen || !strings.HasPrefix(s, accountNumberPrefix) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidateTransactionID reports whether s has the shape GenerateID gives
// transaction IDs: the "tan-" prefix followed by a 10 character suffix.
func ValidateTransactionID(s string) bool {
	return len(s) == len("tan-")+idSuffixLen && strings.HasPrefix(s, "tan-")
}
