package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの種別を表す
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInvalidState    Kind = "invalid_state"
	KindUpstream        Kind = "upstream_error"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

// HTTPStatus は種別に対応するHTTPステータスを返す
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidArgument, KindInvalidState:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error は種別付きのアプリケーションエラー
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New は新しいエラーを作成する
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap は原因エラーを保持したエラーを作成する
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidArgument(message string) *Error { return New(KindInvalidArgument, message) }
func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }
func Forbidden(message string) *Error       { return New(KindForbidden, message) }
func NotFound(message string) *Error        { return New(KindNotFound, message) }
func Conflict(message string) *Error        { return New(KindConflict, message) }
func InvalidState(message string) *Error    { return New(KindInvalidState, message) }
func Unavailable(message string) *Error     { return New(KindUnavailable, message) }

// Internal は想定外の失敗を Internal として包む
func Internal(err error, message string) *Error {
	return Wrap(err, KindInternal, message)
}

// KindOf はエラーチェーンから種別を取り出す
// 種別を持たないエラーは Internal として扱う
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is はエラーチェーンが指定種別かを返す
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// 5xx の応答で返す固定メッセージ（Unavailable は再試行の判断に使うため元のメッセージを返す）
var genericMessages = map[Kind]string{
	KindUpstream: "外部サービスから不正な応答がありました",
	KindInternal: "内部サーバーエラー",
}

// MessageOf は利用者向けメッセージを返す
// 5xx のエラーは詳細を返さない
func MessageOf(err error) string {
	var ae *Error
	if !errors.As(err, &ae) {
		return genericMessages[KindInternal]
	}
	if ae.Kind != KindUnavailable && ae.Kind.HTTPStatus() >= http.StatusInternalServerError {
		if msg, ok := genericMessages[ae.Kind]; ok {
			return msg
		}
		return genericMessages[KindInternal]
	}
	return ae.Message
}
