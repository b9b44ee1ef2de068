package validator

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"campusbook/pkg/model"
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
	return fmt.Sprintf("validation failed: %d error(s)", len(v))
}

type SlotValidator struct {
	validate *validator.Validate
}

func NewSlotValidator() *SlotValidator {
	return &SlotValidator{
		validate: validator.New(),
	}
}

func (v *SlotValidator) Validate(slot *model.Slot) error {
	if err := v.validate.Struct(slot); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *SlotValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: messageForTag(err),
		})
	}

	return validationErrors
}

func messageForTag(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "mongodb":
		return "must be a valid object id"
	default:
		return fmt.Sprintf("failed validation rule %q", err.Tag())
	}
}
