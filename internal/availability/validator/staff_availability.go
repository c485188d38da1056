package validator

import (
	"errors"
	"fmt"
	"strings"

	"agendly/pkg/logger"
	"agendly/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// WindowValidator checks weekly availability windows before they are stored.
type WindowValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewWindowValidator(log *logger.Logger) *WindowValidator {
	v := validator.New()

	if err := v.RegisterValidation("time_of_day", validateTimeOfDay); err != nil {
		log.Fatal("Failed to register 'time_of_day' validator", "error", err)
	}
	v.RegisterStructValidation(validateWindowOrder, model.StaffAvailability{})

	return &WindowValidator{
		validate: v,
		logger:   log,
	}
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return true
	}
	_, err := model.ParseTimeOfDay(value)
	return err == nil
}

// validateWindowOrder requires work start < work end and a break that sits
// inside the working window.
func validateWindowOrder(sl validator.StructLevel) {
	window := sl.Current().Interface().(model.StaffAvailability)

	if (window.BreakStart == "") != (window.BreakEnd == "") {
		sl.ReportError(window.BreakStart, "BreakStart", "break_start", "break_pair", "")
	}

	start, end, err := window.WorkingMinutes()
	if err != nil {
		// reported by the field level time_of_day tag
		return
	}
	if start >= end {
		sl.ReportError(window.WorkEnd, "WorkEnd", "work_end", "after_work_start", "")
		return
	}

	breakStart, breakEnd, ok, err := window.BreakMinutes()
	if err != nil || !ok {
		return
	}
	if breakStart >= breakEnd {
		sl.ReportError(window.BreakEnd, "BreakEnd", "break_end", "after_break_start", "")
		return
	}
	if breakStart < start || breakEnd > end {
		sl.ReportError(window.BreakStart, "BreakStart", "break_start", "within_working_hours", "")
	}
}

func (v *WindowValidator) Validate(window *model.StaffAvailability) error {
	if err := v.validate.Struct(window); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *WindowValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "break_pair":
			message = "break_start and break_end must be set together"
		case "min", "max":
			if err.Field() == "DayOfWeek" {
				message = "day_of_week must be between 0 (Sunday) and 6 (Saturday)"
			} else {
				message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
			}
		case "time_of_day":
			message = fmt.Sprintf("%s must be in HH:MM 24-hour format", err.Field())
		case "after_work_start":
			message = "work_end must be after work_start"
		case "after_break_start":
			message = "break_end must be after break_start"
		case "within_working_hours":
			message = "break must lie within working hours"
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
