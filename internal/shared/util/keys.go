package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// OwnerKey maps a user id, guest ids included, to a fixed-width path segment
// so raw identities never appear in storage keys.
func OwnerKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:16])
}

// ObjectName prefixes a sanitized upload name with a random UUID so repeated
// uploads of the same lease never collide.
func ObjectName(fileName string) (string, error) {
	name, err := SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", uuid.NewString(), name), nil
}
