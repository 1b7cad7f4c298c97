package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/student-housing-reservation/internal/domain/reservation"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/apperr"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/auth"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/logger"
)

const actorKey = "actor"

var (
	errMissingToken = apperr.Unauthenticated("認証トークンが必要です")
	errInvalidToken = apperr.Unauthenticated("無効な認証トークンです")
	errRoleDenied   = apperr.Forbidden("この操作を行う権限がありません")
)

// TokenParser はアクセストークンを検証する
type TokenParser interface {
	Parse(accessToken string) (auth.Identity, error)
}

// Authenticate は Authorization: Bearer トークンを検証し、利用者をコンテキストに格納する
func Authenticate(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				return errMissingToken
			}

			id, err := parser.Parse(strings.TrimSpace(token))
			if err != nil {
				return apperr.Wrap(err, apperr.KindUnauthenticated, errInvalidToken.Message)
			}
			actor := reservation.Actor{ID: id.UserID, Role: reservation.Role(id.Role)}
			if !actor.Role.IsValid() {
				return errInvalidToken
			}

			c.Set(actorKey, actor)
			req := c.Request()
			ctx := logger.WithContext(req.Context(), logger.FromContext(req.Context()).With(
				zap.String("user_id", actor.ID),
				zap.String("role", string(actor.Role)),
			))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// ActorFrom は認証済みの利用者を返す
func ActorFrom(c echo.Context) (reservation.Actor, bool) {
	actor, ok := c.Get(actorKey).(reservation.Actor)
	return actor, ok
}

// RequireRole は指定した種別の利用者のみ通過させる
func RequireRole(roles ...reservation.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return errMissingToken
			}
			for _, r := range roles {
				if actor.Role == r {
					return next(c)
				}
			}
			return errRoleDenied
		}
	}
}
