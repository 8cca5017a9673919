package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// ContentHash is the duplicate fingerprint of a receipt: the hex SHA-256 of the
// exact OCR text. Any difference in the text yields a different hash.
func ContentHash(rawText string) string {
	hash := sha256.Sum256([]byte(rawText))
	return hex.EncodeToString(hash[:])
}
