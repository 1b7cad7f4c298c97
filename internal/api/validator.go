package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sanosuguru/student-housing-reservation/internal/pkg/apperr"
)

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
func NewValidator() *CustomValidator {
	v := validator.New()
	// エラーメッセージにはJSONのフィールド名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return apperr.Wrap(err, apperr.KindInvalidArgument, strings.Join(msgs, "; "))
	}
	return apperr.Wrap(err, apperr.KindInvalidArgument, "入力値が不正です")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s は必須です", fe.Field())
	case "datetime":
		return fmt.Sprintf("%s はYYYY-MM-DD形式である必要があります", fe.Field())
	case "max":
		return fmt.Sprintf("%s は%s文字以内である必要があります", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s が不正です（%s）", fe.Field(), fe.Tag())
	}
}
