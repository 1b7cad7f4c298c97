package handler

import (
	"context"

	"github.com/sanosuguru/student-housing-reservation/internal/application"
	"github.com/sanosuguru/student-housing-reservation/internal/domain/reservation"
)

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	Create(ctx context.Context, input application.CreateReservationInput) (*application.CreateResult, error)
	GetByID(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error)
	ListMine(ctx context.Context, actor reservation.Actor, q application.ListQuery) (*application.Page, error)
	ListForTarget(ctx context.Context, actor reservation.Actor, targetID string, q application.ListQuery) (*application.Page, error)
	UpdateStatus(ctx context.Context, actor reservation.Actor, id, status string) (*reservation.Reservation, error)
	UpdatePaymentStatus(ctx context.Context, actor reservation.Actor, id, paymentStatus string) (*reservation.Reservation, error)
	CancelMine(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error)
}

// Pinger は疎通確認できる依存先（*sqlx.DB など）
type Pinger interface {
	PingContext(ctx context.Context) error
}
