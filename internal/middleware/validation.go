// internal/middleware/validation.go
package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/apperror"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

// ValidationConfig holds validation configuration
type ValidationConfig struct {
	MinUsernameLength    int
	MaxUsernameLength    int
	MaxEmailLength       int
	MaxTitleLength       int
	MaxDescriptionLength int
}

// DefaultValidationConfig returns default validation configuration
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		MinUsernameLength:    3,
		MaxUsernameLength:    50,
		MaxEmailLength:       255,
		MaxTitleLength:       100,
		MaxDescriptionLength: 500,
	}
}

// Validator validates request bodies and reports failures per JSON field
type Validator struct {
	config   *ValidationConfig
	validate *validator.Validate
}

// NewValidator creates a validator with the custom rules used by request bodies:
// notblank, username, password, taskstatus (an active status), priority and activitytype.
func NewValidator(config *ValidationConfig, passwords *auth.PasswordManager) *Validator {
	if config == nil {
		config = DefaultValidationConfig()
	}
	if passwords == nil {
		passwords = auth.NewPasswordManager()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return auth.ValidateUsername(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return passwords.ValidatePassword(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
		return models.TaskStatus(fl.Field().String()).Active()
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return models.Priority(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("activitytype", func(fl validator.FieldLevel) bool {
		return models.ActivityType(fl.Field().String()).Valid()
	})

	return &Validator{config: config, validate: v}
}

// Struct validates s and converts failures into an apperror validation error
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.BadRequest("invalid request").Wrap(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = v.message(fe)
	}
	return apperror.Validation("validation failed", fields)
}

func (v *Validator) message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return "invalid email format"
	case "username":
		return fmt.Sprintf("username must be %d-%d characters of letters, numbers, underscore or hyphen",
			v.config.MinUsernameLength, v.config.MaxUsernameLength)
	case "password":
		return "password must be at least 8 characters with upper case, lower case and a number"
	case "taskstatus":
		return "status must be one of TODO, IN_PROGRESS, DONE"
	case "priority":
		return "priority must be one of LOW, MEDIUM, HIGH"
	case "activitytype":
		return "type must be one of CREATED, UPDATED, STATUS_CHANGED, COMMENT"
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// Bind parses the JSON body into dst and validates it
func (v *Validator) Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperror.BadRequest("malformed request body").Wrap(err)
	}
	return v.Struct(dst)
}
