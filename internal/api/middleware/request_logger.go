package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/student-housing-reservation/internal/pkg/logger"
)

// RequestLogger はリクエストの構造化ログを出力するミドルウェア
// リクエストID付きのロガーをコンテキストに格納する
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			// リクエストIDを取得（middleware.RequestID が付与したもの）
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = res.Header().Get(echo.HeaderXRequestID)
			}

			log := logger.Get().With(zap.String("request_id", requestID))
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), log)))

			// リクエスト処理
			err := next(c)

			// エラーはここで処理してステータスを確定させる
			if err != nil {
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.Int("status", res.Status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
			}

			// 認証後のロガー（user_id付き）があればそちらを使う
			log = logger.FromContext(c.Request().Context())
			switch {
			case res.Status >= 500:
				log.Error("server error", append(fields, zap.Error(err))...)
			case res.Status >= 400:
				log.Warn("client error", append(fields, zap.Error(err))...)
			default:
				log.Info("request completed", fields...)
			}

			return nil
		}
	}
}
