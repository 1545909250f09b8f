package billing

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NumberingScheme selects how invoice numbers are generated
type NumberingScheme string

const (
	// NumberingSequential produces INV-<year>-<5-digit sequence>,
	// e.g. INV-2026-00042. The sequence is per tenant and per year.
	NumberingSequential NumberingScheme = "sequential"
	// NumberingRandom produces INV-<YYYYMMDD>-<5 uppercase alphanumerics>,
	// e.g. INV-20260901-7KQ2M. Collisions are retried by the generator.
	NumberingRandom NumberingScheme = "random"
)

// IsValid checks if the scheme is supported
func (s NumberingScheme) IsValid() bool {
	return s == NumberingSequential || s == NumberingRandom
}

// NumberGenerator yields invoice numbers unique per tenant. Uniqueness is
// backed by persistent state, not process memory, so concurrent instances
// and restarts never repeat a number.
type NumberGenerator interface {
	// NextInvoiceNumber returns the next unique invoice number for a tenant
	NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID, at time.Time) (string, error)
}

// FormatSequentialNumber renders a sequential invoice number
func FormatSequentialNumber(year int, sequence int64) string {
	return fmt.Sprintf("INV-%d-%05d", year, sequence)
}

// FormatRandomNumber renders a random-suffix invoice number for a date
func FormatRandomNumber(at time.Time, suffix string) string {
	return fmt.Sprintf("INV-%s-%s", at.Format("20060102"), suffix)
}

const randomSuffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandomSuffix returns n uppercase alphanumeric characters from a
// cryptographic source.
func RandomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = randomSuffixAlphabet[int(b)%len(randomSuffixAlphabet)]
	}
	return string(buf), nil
}
