package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/student-housing-reservation/internal/api"
)

// newTestEcho は本番と同じバリデーターとエラーハンドラーを持つEchoを作成する
func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}
