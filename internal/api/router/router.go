package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/student-housing-reservation/internal/api"
	"github.com/sanosuguru/student-housing-reservation/internal/api/handler"
	"github.com/sanosuguru/student-housing-reservation/internal/api/middleware"
	"github.com/sanosuguru/student-housing-reservation/internal/config"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/metrics"
)

// Deps はルーティングに必要な依存関係
type Deps struct {
	Reservations handler.ReservationServiceInterface
	Tokens       middleware.TokenParser
	DB           handler.Pinger

	// Metrics と MetricsHandler は nil の場合に無効
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	MetricsAuth    config.MetricsConfig

	// 空の場合はすべてのオリジンを許可する
	AllowOrigins []string
}

// New はミドルウェアとルートを設定したEchoインスタンスを作成する
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e, d.AllowOrigins)
	if d.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(d.Metrics))
	}

	e.GET("/health", handler.NewHealthHandler(d.DB).Check)
	if d.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(d.MetricsHandler),
			middleware.MetricsBasicAuth(d.MetricsAuth.User, d.MetricsAuth.Password))
	}

	reservations := e.Group("/reservations", middleware.Authenticate(d.Tokens))
	handler.NewReservationHandler(d.Reservations).Register(reservations)

	return e
}
