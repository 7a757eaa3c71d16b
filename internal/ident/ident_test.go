package ident

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.NewID(), g.NewID()

	assert.NotEqual(t, a, b)
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestTransactionNumber_Format(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	c := Codes{Location: loc}
	now := time.Date(2024, 3, 1, 2, 5, 0, 0, time.UTC)

	n, err := c.TransactionNumber(now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^TRX-20240301-0905-[0-9A-Z]{4}$`), n)
}

func TestTransactionNumber_DeterministicWithFixedSource(t *testing.T) {
	// Byte values index straight into the base36 alphabet.
	c := Codes{Rand: bytes.NewReader([]byte{10, 11, 12, 35, 0, 0, 0, 0}), Location: time.UTC}
	n, err := c.TransactionNumber(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "TRX-20241231-2359-ABCZ", n)
}

func TestDiscountCode(t *testing.T) {
	c := Codes{}
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := c.DiscountCode()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestRandom_RejectsBiasedBytes(t *testing.T) {
	// 252..255 fall outside the largest multiple of 36 and are skipped.
	src := bytes.NewReader([]byte{255, 254, 253, 252, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15})
	c := Codes{Rand: src}
	code, err := c.DiscountCode()
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGH", code)
}

func TestRandom_SourceError(t *testing.T) {
	c := Codes{Rand: bytes.NewReader(nil)}
	_, err := c.DiscountCode()
	assert.Error(t, err)
}
