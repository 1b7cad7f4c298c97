package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/student-housing-reservation/internal/pkg/apperr"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Code  int    `json:"code,omitempty"`
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
// apperr の種別をHTTPステータスに変換する
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, resp := toErrorResponse(err)

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.FromContext(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("kind", resp.Kind),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	var sendErr error
	if c.Request().Method == http.MethodHead {
		sendErr = c.NoContent(code)
	} else {
		sendErr = c.JSON(code, resp)
	}
	if sendErr != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(sendErr))
	}
}

func toErrorResponse(err error) (int, ErrorResponse) {
	var ae *apperr.Error
	var he *echo.HTTPError
	if !errors.As(err, &ae) && errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			message = m
		}
		return he.Code, ErrorResponse{Error: message, Code: he.Code}
	}

	kind := apperr.KindOf(err)
	code := kind.HTTPStatus()
	return code, ErrorResponse{
		Error: apperr.MessageOf(err),
		Kind:  string(kind),
		Code:  code,
	}
}
