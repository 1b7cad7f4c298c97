package reservation

import (
	"math"
	"strings"
	"time"
)

// DateLayout は日付の入出力フォーマット
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// ParseDate は YYYY-MM-DD 形式の文字列を日付に変換する
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// DateOf は時刻成分を落としたUTCの日付を返す
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateRange は半開区間 [Start, End) の宿泊期間
// チェックアウト日は次の予約のチェックイン日として利用できる
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange は期間を作成し、必須チェックと前後関係を検証する
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() {
		return DateRange{}, ErrStartDateRequired
	}
	if end.IsZero() {
		return DateRange{}, ErrEndDateRequired
	}
	r := DateRange{Start: DateOf(start), End: DateOf(end)}
	if !r.Start.Before(r.End) {
		return DateRange{}, ErrInvalidDateRange
	}
	return r, nil
}

// Nights は宿泊数を返す（端数は切り上げ）
func (r DateRange) Nights() int {
	return int(math.Ceil(float64(r.End.Sub(r.Start)) / float64(day)))
}

// Overlaps は2つの半開区間が交差するかを返す
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// StartsBefore は開始日が指定日より前かを返す
func (r DateRange) StartsBefore(date time.Time) bool {
	return r.Start.Before(DateOf(date))
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + "/" + r.End.Format(DateLayout)
}
