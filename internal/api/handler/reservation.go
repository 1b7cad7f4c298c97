package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/student-housing-reservation/internal/api/middleware"
	"github.com/sanosuguru/student-housing-reservation/internal/application"
	"github.com/sanosuguru/student-housing-reservation/internal/domain/reservation"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/apperr"
)

var (
	errInvalidRequest = apperr.InvalidArgument("無効なリクエスト")
	errInvalidQuery   = apperr.InvalidArgument("page と limit は整数である必要があります")
	errNoActor        = apperr.Unauthenticated("認証が必要です")
)

type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(s ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

// EntityID は数値・文字列どちらの形式のIDも文字列として受け付ける
type EntityID string

func (id *EntityID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = EntityID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = EntityID(n.String())
	return nil
}

// CreateReservationRequest は旧クライアントのフィールド名
// （alojamento_id, data_inicio, data_fim, observacoes）も受け付ける
type CreateReservationRequest struct {
	TargetID  EntityID `json:"target_id" validate:"required" example:"42"`
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02" example:"2030-03-01"`
	EndDate   string   `json:"end_date" validate:"required,datetime=2006-01-02" example:"2030-03-15"`
	Notes     string   `json:"notes" validate:"max=1000" example:"到着は夜になります"`

	LegacyTargetID  EntityID `json:"alojamento_id"`
	LegacyStartDate string   `json:"data_inicio"`
	LegacyEndDate   string   `json:"data_fim"`
	LegacyNotes     string   `json:"observacoes"`
}

// normalize は未指定の項目を旧フィールドの値で補う
func (r *CreateReservationRequest) normalize() {
	if r.TargetID == "" {
		r.TargetID = r.LegacyTargetID
	}
	if r.StartDate == "" {
		r.StartDate = r.LegacyStartDate
	}
	if r.EndDate == "" {
		r.EndDate = r.LegacyEndDate
	}
	if r.Notes == "" {
		r.Notes = r.LegacyNotes
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required" example:"confirmed"`
}

// UpdatePaymentRequest は旧クライアントの pagamento_status も受け付ける
type UpdatePaymentRequest struct {
	PaymentStatus       string `json:"payment_status" example:"paid"`
	LegacyPaymentStatus string `json:"pagamento_status"`
}

func (r UpdatePaymentRequest) value() string {
	if r.PaymentStatus != "" {
		return r.PaymentStatus
	}
	return r.LegacyPaymentStatus
}

type ReservationResponse struct {
	ID            string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	TargetID      string    `json:"target_id" example:"42"`
	UserID        string    `json:"user_id" example:"7"`
	StartDate     string    `json:"start_date" example:"2030-03-01"`
	EndDate       string    `json:"end_date" example:"2030-03-15"`
	Nights        int       `json:"nights" example:"14"`
	Status        string    `json:"status" example:"pending"`
	PaymentStatus string    `json:"payment_status" example:"pending"`
	TotalPrice    float64   `json:"total_price" example:"6300"`
	Notes         string    `json:"notes,omitempty"`
	Version       int       `json:"version" example:"1"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type BreakdownResponse struct {
	Accommodation string  `json:"accommodation" example:"Quarto T1 Centro"`
	PricePerNight float64 `json:"price_per_night" example:"450"`
	Nights        int     `json:"nights" example:"14"`
	Total         float64 `json:"total" example:"6300"`
}

type CreateReservationResponse struct {
	Message     string              `json:"message"`
	Reservation ReservationResponse `json:"reservation"`
	Breakdown   BreakdownResponse   `json:"breakdown"`
}

type ReservationMessageResponse struct {
	Message     string               `json:"message"`
	Reservation *ReservationResponse `json:"reservation,omitempty"`
}

type PaginationResponse struct {
	Total   int `json:"total"`
	Pages   int `json:"pages"`
	Current int `json:"current"`
	Limit   int `json:"limit"`
}

type ReservationListResponse struct {
	Pagination PaginationResponse    `json:"pagination"`
	Data       []ReservationResponse `json:"data"`
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID: r.ID, TargetID: r.TargetID, UserID: r.UserID,
		StartDate: r.StartDate.Format(reservation.DateLayout),
		EndDate:   r.EndDate.Format(reservation.DateLayout),
		Nights:    r.Period().Nights(),
		Status:    string(r.Status), PaymentStatus: string(r.PaymentStatus),
		TotalPrice: r.TotalPrice, Notes: r.Notes, Version: r.Version,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func toListResponse(p *application.Page) ReservationListResponse {
	data := make([]ReservationResponse, len(p.Items))
	for i, r := range p.Items {
		data[i] = toReservationResponse(r)
	}
	return ReservationListResponse{
		Pagination: PaginationResponse{Total: p.Total, Pages: p.Pages, Current: p.Current, Limit: p.Limit},
		Data:       data,
	}
}

func actorOf(c echo.Context) (reservation.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return reservation.Actor{}, errNoActor
	}
	return actor, nil
}

func bindListQuery(c echo.Context) (application.ListQuery, error) {
	var q application.ListQuery
	err := echo.QueryParamsBinder(c).
		String("status", &q.Status).
		Int("page", &q.Page).
		Int("limit", &q.PageSize).
		BindError()
	if err != nil {
		return q, apperr.Wrap(err, apperr.KindInvalidArgument, errInvalidQuery.Message)
	}
	return q, nil
}

// Create godoc
// @Summary 予約を作成
// @Description 宿泊施設の期間を予約します（学生のみ）
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} CreateReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse "宿泊施設が存在しない"
// @Failure 409 {object} api.ErrorResponse "期間が既存の予約と重複"
// @Failure 503 {object} api.ErrorResponse "宿泊施設サービスに接続できない"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(err, apperr.KindInvalidArgument, errInvalidRequest.Message)
	}
	req.normalize()
	if err := c.Validate(&req); err != nil {
		return err
	}
	start, err := reservation.ParseDate(req.StartDate)
	if err != nil {
		return err
	}
	end, err := reservation.ParseDate(req.EndDate)
	if err != nil {
		return err
	}

	result, err := h.service.Create(c.Request().Context(), application.CreateReservationInput{
		Actor: actor, TargetID: string(req.TargetID), StartDate: start, EndDate: end, Notes: req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, CreateReservationResponse{
		Message:     "予約を作成しました",
		Reservation: toReservationResponse(result.Reservation),
		Breakdown: BreakdownResponse{
			Accommodation: result.Breakdown.TargetName,
			PricePerNight: result.Breakdown.PricePerNight,
			Nights:        result.Breakdown.Nights,
			Total:         result.Breakdown.Total,
		},
	})
}

// ListMine godoc
// @Summary 自分の予約一覧を取得
// @Description ログインユーザーの予約を新しい順に取得します（page は0始まり）
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param status query string false "予約状態"
// @Param page query int false "ページ番号" default(0)
// @Param limit query int false "取得件数" default(10)
// @Success 200 {object} ReservationListResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /reservations/minhas [get]
func (h *ReservationHandler) ListMine(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	q, err := bindListQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListMine(c.Request().Context(), actor, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(page))
}

// GetByID godoc
// @Summary 予約を取得
// @Description 予約者本人または管理者が予約を取得します
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	r, err := h.service.GetByID(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// ListForTarget godoc
// @Summary 宿泊施設の予約一覧を取得
// @Description 施設の所有者または管理者が施設の予約を取得します
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param targetId path string true "宿泊施設ID"
// @Param status query string false "予約状態"
// @Param page query int false "ページ番号" default(0)
// @Param limit query int false "取得件数" default(10)
// @Success 200 {object} ReservationListResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 503 {object} api.ErrorResponse
// @Router /reservations/target/{targetId} [get]
func (h *ReservationHandler) ListForTarget(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	q, err := bindListQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListForTarget(c.Request().Context(), actor, c.Param("targetId"), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(page))
}

// UpdateStatus godoc
// @Summary 予約状態を更新
// @Description 状態遷移表に従って予約状態を変更します
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "予約ID"
// @Param request body UpdateStatusRequest true "新しい状態"
// @Success 200 {object} ReservationMessageResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /reservations/{id}/status [patch]
func (h *ReservationHandler) UpdateStatus(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(err, apperr.KindInvalidArgument, errInvalidRequest.Message)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.service.UpdateStatus(c.Request().Context(), actor, c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	resp := toReservationResponse(r)
	return c.JSON(http.StatusOK, ReservationMessageResponse{Message: "予約状態を更新しました", Reservation: &resp})
}

// UpdatePaymentStatus godoc
// @Summary 支払い状態を更新
// @Description 施設の所有者または管理者が支払い状態を変更します
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "予約ID"
// @Param request body UpdatePaymentRequest true "新しい支払い状態"
// @Success 200 {object} ReservationMessageResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id}/payment [patch]
func (h *ReservationHandler) UpdatePaymentStatus(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req UpdatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(err, apperr.KindInvalidArgument, errInvalidRequest.Message)
	}
	if req.value() == "" {
		return apperr.InvalidArgument("payment_status は必須です")
	}
	r, err := h.service.UpdatePaymentStatus(c.Request().Context(), actor, c.Param("id"), req.value())
	if err != nil {
		return err
	}
	resp := toReservationResponse(r)
	return c.JSON(http.StatusOK, ReservationMessageResponse{Message: "支払い状態を更新しました", Reservation: &resp})
}

// CancelMine godoc
// @Summary 予約をキャンセル
// @Description 予約者本人が保留中の予約をキャンセルします
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationMessageResponse
// @Failure 400 {object} api.ErrorResponse "保留中ではない"
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id} [delete]
func (h *ReservationHandler) CancelMine(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if _, err := h.service.CancelMine(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReservationMessageResponse{Message: "予約をキャンセルしました"})
}

// Register は予約APIのルートを登録する
// 旧パス（/alojamento/:targetId, /:id/pagamento）も同じハンドラーに割り当てる
func (h *ReservationHandler) Register(g *echo.Group) {
	renterOnly := middleware.RequireRole(reservation.RoleStudent)

	g.POST("", h.Create, renterOnly)
	g.GET("/minhas", h.ListMine)
	g.GET("/target/:targetId", h.ListForTarget)
	g.GET("/alojamento/:targetId", h.ListForTarget)
	g.GET("/:id", h.GetByID)
	g.PATCH("/:id/status", h.UpdateStatus)
	g.PATCH("/:id/payment", h.UpdatePaymentStatus)
	g.PATCH("/:id/pagamento", h.UpdatePaymentStatus)
	g.DELETE("/:id", h.CancelMine, renterOnly)
}
