// Package secrets generates unguessable credentials such as approval tokens.
package secrets

import (
	"crypto/rand"
	"encoding/base64"

	dErrors "purchasegate/pkg/domain-errors"
)

// DefaultBytes is the entropy of a generated secret.
const DefaultBytes = 32

// Generate returns n random bytes, URL-safe base64 encoded without padding.
// n below DefaultBytes is raised to it.
func Generate(n int) (string, error) {
	if n < DefaultBytes {
		n = DefaultBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
