// utils/response.go
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"billflow-backend/billing"
	"billflow-backend/lifecycle"

	"github.com/gin-gonic/gin"
)

// RespondWithError writes a JSON error body with the given status code.
func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// RespondWithDomainError maps the error taxonomy onto HTTP statuses so every
// handler reports engine failures the same way.
func RespondWithDomainError(c *gin.Context, err error) {
	var invalidInput *billing.ErrInvalidInput
	var invalidTransition *lifecycle.ErrInvalidTransition
	var conflict *billing.ErrConcurrentModification

	switch {
	case errors.As(err, &invalidInput):
		c.JSON(400, gin.H{"error": err.Error(), "kind": "InvalidInput"})
	case errors.As(err, &invalidTransition):
		c.JSON(409, gin.H{
			"error":       err.Error(),
			"kind":        "InvalidTransition",
			"current":     invalidTransition.Current,
			"attempted":   invalidTransition.Attempted,
			"allowedFrom": invalidTransition.AllowedFrom,
		})
	case errors.As(err, &conflict):
		c.JSON(409, gin.H{"error": err.Error(), "kind": "ConcurrentModification", "retryable": true})
	default:
		c.JSON(500, gin.H{"error": err.Error()})
	}
}

// GenerateRandomString returns n bytes of randomness hex-encoded (2n chars).
// Used for approval tokens.
func GenerateRandomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("failed to read random bytes")
	}
	return hex.EncodeToString(b)
}
