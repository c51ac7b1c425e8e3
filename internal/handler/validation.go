package handler

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yourusername/homepage-api/internal/service"
)

var registerOnce sync.Once

// RegisterValidators добавляет собственные теги в валидатор gin: username и strongpassword.
// Повторные вызовы ничего не делают.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}

		v.RegisterTagNameFunc(fieldName)
		if err = v.RegisterValidation("username", validateUsernameTag); err != nil {
			return
		}
		err = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
			return service.ValidatePassword(fl.Field().String()) == nil
		})
	})
	return err
}

// fieldName называет поле так же, как клиент: по json, затем form тегу
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// validateUsernameTag: 3-80 символов, без пробелов и управляющих символов
func validateUsernameTag(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	n := utf8.RuneCountInString(s)
	if n < 3 || n > 80 {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("Minimum length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("Maximum length is %s", fe.Param())
	case "username":
		return "Username must be 3-80 characters without spaces"
	case "strongpassword":
		if s, ok := fe.Value().(string); ok {
			if err := service.ValidatePassword(s); err != nil {
				return detail(err, service.ErrWeakPassword)
			}
		}
		return "Password is too weak"
	default:
		return fmt.Sprintf("Invalid %s field", fe.Field())
	}
}

// describeBindingError превращает ошибку binding в читаемую строку "поле: причина; ..."
func describeBindingError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), validationMessage(fe)))
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
