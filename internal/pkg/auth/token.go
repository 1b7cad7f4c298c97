package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	ErrEmptySigningKey = errors.New("署名キーが設定されていません")
	ErrInvalidToken    = errors.New("無効な認証トークンです")
)

// Identity はトークンに含まれる利用者情報
type Identity struct {
	UserID string
	Role   string
}

// Manager はHS256で署名されたアクセストークンを発行・検証する
type Manager struct {
	signingKey string
}

func NewManager(signingKey string) (*Manager, error) {
	if signingKey == "" {
		return nil, ErrEmptySigningKey
	}
	return &Manager{signingKey: signingKey}, nil
}

// NewToken はトークンを発行する（テストと開発用）
func (m *Manager) NewToken(id Identity, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   id.UserID,
		"tipo": id.Role,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(m.signingKey))
}

// Parse はトークンを検証して利用者情報を返す
// id クレームは文字列と数値のどちらも受け付ける
func (m *Manager) Parse(accessToken string) (Identity, error) {
	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("予期しない署名方式: %v", token.Header["alg"])
		}
		return []byte(m.signingKey), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID := claimString(claims["id"])
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: id クレームがありません", ErrInvalidToken)
	}
	role, _ := claims["tipo"].(string)
	return Identity{UserID: userID, Role: role}, nil
}

func claimString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
