package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"eventbook/pkg/logger"
	"eventbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

var (
	clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
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
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type EventValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewEventValidator(log *logger.Logger) *EventValidator {
	v := validator.New()

	if err := v.RegisterValidation("clock", validateClock); err != nil {
		log.Fatal("Failed to register 'clock' validator",
			"error", err,
		)
	}

	log.Info("Event validator initialized successfully")

	return &EventValidator{
		validate: v,
		logger:   log,
	}
}

func validateClock(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(fl.Field().String())
}

func (v *EventValidator) Validate(event *model.Event) error {
	if err := v.validate.Struct(event); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	titles := make(map[string]struct{}, len(event.CustomFields))
	for _, field := range event.CustomFields {
		if _, ok := titles[field.Title]; ok {
			return ValidationErrors{
				ValidationError{
					Field:   "CustomFields",
					Message: fmt.Sprintf("duplicate custom field title %q", field.Title),
				},
			}
		}
		titles[field.Title] = struct{}{}
	}

	return nil
}

func (v *EventValidator) ValidateSlots(slots []model.SlotInput) error {
	var validationErrors ValidationErrors

	for i, slot := range slots {
		if err := v.validate.Struct(&slot); err != nil {
			var validationErrs validator.ValidationErrors
			if errors.As(err, &validationErrs) {
				validationErrors = append(validationErrors, v.translateValidationErrors(validationErrs)...)
				continue
			}
			return err
		}

		if slot.StartDate.IsZero() || slot.EndDate.IsZero() {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fmt.Sprintf("Slots[%d]", i),
				Message: "start_date and end_date are required",
			})
			continue
		}

		if slot.EndDate.Before(slot.StartDate) {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fmt.Sprintf("Slots[%d]", i),
				Message: "end_date must not be before start_date",
			})
		}
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}
	return nil
}

func (v *EventValidator) ValidateUpdate(update *model.EventUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if update.Slots != nil {
		if err := v.ValidateSlots(*update.Slots); err != nil {
			return err
		}
	}

	return nil
}

func (v *EventValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "clock":
			message = fmt.Sprintf("%s must be in HH:MM format (00:00-23:59)", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
