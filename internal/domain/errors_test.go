package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_KindHelpersSeeThroughWrapping(t *testing.T) {
	base := NewConflictError(CodeShiftAlreadyOpen, "shift already open")
	wrapped := fmt.Errorf("open shift: %w", base)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, CodeShiftAlreadyOpen, CodeOf(wrapped))
	assert.Equal(t, "SHIFT_ALREADY_OPEN: shift already open", base.Error())
}

func TestError_PersistenceUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPersistenceError("commit sale", cause)

	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAsPersistence_KeepsDomainErrors(t *testing.T) {
	v := NewValidationError(CodeEmptyCart, "cart is empty")
	assert.Same(t, v, AsPersistence("x", v))

	plain := errors.New("boom")
	assert.True(t, IsPersistence(AsPersistence("x", plain)))
	assert.NoError(t, AsPersistence("x", nil))
}

func TestError_With(t *testing.T) {
	err := NewNotFoundError(CodeNotFound, "missing").With("id", "p-1")
	assert.Equal(t, "p-1", err.Details["id"])
}

func TestPointsFor(t *testing.T) {
	tests := []struct {
		total int64
		want  int64
	}{
		{0, 0},
		{9999, 0},
		{10000, 1},
		{45000, 4},
		{-5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PointsFor(tt.total), "total=%d", tt.total)
	}
}

func TestFormatTime_FixedWidthSortsLexically(t *testing.T) {
	a := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	b := a.Add(1500 * time.Millisecond)

	fa, fb := FormatTime(a), FormatTime(b)
	assert.Equal(t, "2024-03-01T09:00:00.000Z", fa)
	assert.Equal(t, "2024-03-01T09:00:01.500Z", fb)
	assert.Less(t, fa, fb)

	parsed, err := ParseTime(fb)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(b))
}

func TestParseTime_AcceptsRFC3339(t *testing.T) {
	got, err := ParseTime("2024-03-01T16:00:00+07:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T09:00:00.000Z", FormatTime(got))

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}

func TestParseBound_DateOnlyIsWholeDay(t *testing.T) {
	start, err := ParseBound("2024-03-01", false, time.UTC)
	require.NoError(t, err)
	end, err := ParseBound("2024-03-01", true, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 999999999, time.UTC), end)
}

func TestDayKey(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	ts := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-02", DayKey(ts, loc))
	assert.Equal(t, "2024-03-01", DayKey(ts, nil))
}

func TestEnums(t *testing.T) {
	assert.True(t, PaymentQRIS.Valid())
	assert.False(t, PaymentMethod("card").Valid())
	assert.True(t, DiscountFixed.Valid())
	assert.False(t, DiscountType("bogo").Valid())
	assert.True(t, AdjustmentOpname.Valid())
	assert.True(t, ActionDelete.Valid())
	assert.True(t, IsCollection("held_transactions"))
	assert.False(t, IsCollection("users; DROP TABLE products"))
}
