package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators は gin のバインディングに isodate (YYYY-MM-DD) 検証を登録し、
// エラー中のフィールド名を JSON 名で報告させます。
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(dateLayout, fl.Field().String())
			return err == nil
		})
	})
}

// bindingErrorMessage はリクエストボディの検証エラーを利用者向けの文言に変換します。
func bindingErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("Missing required field '%s'", fe.Field())
		case "isodate":
			return fmt.Sprintf("Field '%s' must be a date in YYYY-MM-DD format", fe.Field())
		case "email":
			return fmt.Sprintf("Field '%s' must be a valid email address", fe.Field())
		default:
			return fmt.Sprintf("Field '%s' is invalid", fe.Field())
		}
	}
	return "Request body is not valid JSON"
}
