// Package ident generates identifiers: UUIDv7 record ids, human-readable
// transaction numbers and discount codes. It also defines the Clock used by
// every component that stamps records.
package ident

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces unique record ids.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a hyphenated UUIDv7. Panics if the system random source fails.
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

const (
	base36       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DiscountCodeLength is the length of generated discount codes.
	DiscountCodeLength = 8
)

// Codes generates transaction numbers and discount codes from a random
// source. The zero value uses crypto/rand.
type Codes struct {
	Rand io.Reader

	// Location is used for the date and time parts of transaction numbers.
	// Nil means time.Local.
	Location *time.Location
}

// TransactionNumber returns TRX-{yyyymmdd}-{hhmm}-{XXXX}, where XXXX is four
// random upper-case base36 characters. The number is for display; it is not
// guaranteed unique.
func (c Codes) TransactionNumber(now time.Time) (string, error) {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	suffix, err := c.random(base36, 4)
	if err != nil {
		return "", fmt.Errorf("transaction number: %w", err)
	}
	local := now.In(loc)
	return fmt.Sprintf("TRX-%s-%s-%s", local.Format("20060102"), local.Format("1504"), suffix), nil
}

// DiscountCode returns an 8-character code drawn uniformly from A-Z0-9.
func (c Codes) DiscountCode() (string, error) {
	code, err := c.random(codeAlphabet, DiscountCodeLength)
	if err != nil {
		return "", fmt.Errorf("discount code: %w", err)
	}
	return code, nil
}

// random draws n characters uniformly from alphabet using rejection sampling
// so that no character is favoured by the modulo.
func (c Codes) random(alphabet string, n int) (string, error) {
	r := c.Rand
	if r == nil {
		r = rand.Reader
	}
	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
