package task

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// createRequest はタスク作成リクエストのJSON構造。
type createRequest struct {
	// Name はタスク名。空文字列は不可。
	Name string `json:"name" validate:"required"`
	// Priority は優先度。0も有効な値として扱う。
	Priority *int `json:"priority" validate:"required"`
	// IsCompleted は完了状態。
	IsCompleted *bool `json:"is_completed" validate:"required"`
}

// updateRequest はタスク更新リクエストのJSON構造。省略したフィールドは変更しない。
type updateRequest struct {
	Name        *string `json:"name" validate:"omitnil,min=1"`
	Priority    *int    `json:"priority"`
	IsCompleted *bool   `json:"is_completed"`
}

// fieldMessages はJSONフィールド名ごとの検証エラーメッセージ。
var fieldMessages = map[string]string{
	"name":         "Name is required.",
	"priority":     "Priority is required.",
	"is_completed": "Completion status is required.",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationErrors は構造体を検証し、クライアント向けのメッセージをフィールド順に返す。
// 問題が無い場合はnilを返す。
func validationErrors(req any) ([]string, error) {
	err := validate.Struct(req)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = fe.Field() + " is invalid."
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
