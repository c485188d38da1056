package validator

import (
	"errors"
	"fmt"
	"strings"

	"agendly/pkg/logger"
	"agendly/pkg/model"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type FieldErrors []FieldError

func (f FieldErrors) Error() string {
	messages := make([]string, 0, len(f))
	for _, err := range f {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

type SlotLockValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSlotLockValidator(log *logger.Logger) *SlotLockValidator {
	return &SlotLockValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *SlotLockValidator) Validate(req *model.LockRequest) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrs := make(FieldErrors, 0, len(validationErrs))
	for _, fe := range validationErrs {
		message := fe.Error()
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", fe.Field())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", fe.Field(), fe.Param())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
		}
		fieldErrs = append(fieldErrs, FieldError{Field: fe.Field(), Message: message})
	}
	return fieldErrs
}
