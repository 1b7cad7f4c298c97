package postgres

import (
	"errors"

	"github.com/lib/pq"

	"github.com/sanosuguru/student-housing-reservation/internal/domain/reservation"
)

// PostgreSQL のエラーコード
const (
	codeExclusionViolation   = "23P01"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// translateError は競合を表すドライバーエラーをドメインエラーに変換する
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeExclusionViolation:
		return reservation.ErrDateRangeConflict
	case codeSerializationFailure, codeDeadlockDetected:
		return reservation.ErrConcurrentModification
	}
	return err
}
