package http

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared by all handlers. Field names in validation errors come
// from json tags so clients see the names they sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
