package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2030-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDate("15/01/2030")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("2030-02-30")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestNewDateRange(t *testing.T) {
	start := time.Date(2030, 1, 10, 15, 30, 0, 0, time.UTC)
	end := time.Date(2030, 1, 12, 9, 0, 0, 0, time.UTC)

	t.Run("時刻成分は切り捨てられる", func(t *testing.T) {
		r, err := NewDateRange(start, end)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC), r.Start)
		assert.Equal(t, 2, r.Nights())
		assert.Equal(t, "2030-01-10/2030-01-12", r.String())
	})

	t.Run("開始日未指定", func(t *testing.T) {
		_, err := NewDateRange(time.Time{}, end)
		assert.ErrorIs(t, err, ErrStartDateRequired)
	})

	t.Run("終了日未指定", func(t *testing.T) {
		_, err := NewDateRange(start, time.Time{})
		assert.ErrorIs(t, err, ErrEndDateRequired)
	})

	t.Run("同日は不正", func(t *testing.T) {
		_, err := NewDateRange(start, start.Add(time.Hour))
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})

	t.Run("逆順は不正", func(t *testing.T) {
		_, err := NewDateRange(end, start)
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})
}

func TestDateRange_Overlaps(t *testing.T) {
	base := period(t, "2030-01-10", "2030-01-15")
	tests := []struct {
		name  string
		other DateRange
		want  bool
	}{
		{name: "完全一致", other: period(t, "2030-01-10", "2030-01-15"), want: true},
		{name: "内包", other: period(t, "2030-01-11", "2030-01-12"), want: true},
		{name: "包含される", other: period(t, "2030-01-01", "2030-01-31"), want: true},
		{name: "前側で交差", other: period(t, "2030-01-08", "2030-01-11"), want: true},
		{name: "後側で交差", other: period(t, "2030-01-14", "2030-01-20"), want: true},
		{name: "チェックアウト日にチェックイン", other: period(t, "2030-01-15", "2030-01-18"), want: false},
		{name: "チェックイン日にチェックアウト", other: period(t, "2030-01-05", "2030-01-10"), want: false},
		{name: "離れている", other: period(t, "2030-02-01", "2030-02-03"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestDateRange_StartsBefore(t *testing.T) {
	r := period(t, "2030-01-10", "2030-01-12")
	assert.False(t, r.StartsBefore(time.Date(2030, 1, 10, 23, 0, 0, 0, time.UTC)))
	assert.True(t, r.StartsBefore(time.Date(2030, 1, 11, 0, 0, 0, 0, time.UTC)))
}
