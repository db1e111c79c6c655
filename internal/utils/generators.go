package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateInvoiceNumber produces a human-readable cancellation invoice
// number. Uniqueness comes from the timestamp plus a random suffix; the
// invoice row itself is keyed by UUID.
func GenerateInvoiceNumber() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("cinv_%d_%06d", timestamp, randomNum.Int64())
}
