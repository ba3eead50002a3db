// Package validator provides struct validation with custom validators
// for the domain vocabularies.
package validator

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/buildledger/api/pkg/domain/cost"
	"github.com/buildledger/api/pkg/domain/invoice"
	"github.com/buildledger/api/pkg/domain/project"
	"github.com/buildledger/api/pkg/domain/tenant"
	"github.com/buildledger/api/pkg/domain/user"
)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("subdomain", validateSubdomain)
	_ = v.RegisterValidation("role", validateRole)
	_ = v.RegisterValidation("plan", validatePlan)
	_ = v.RegisterValidation("permission_resource", validatePermissionResource)
	_ = v.RegisterValidation("permission_level", validatePermissionLevel)
	_ = v.RegisterValidation("cost_category", validateCostCategory)
	_ = v.RegisterValidation("project_status", validateProjectStatus)
	_ = v.RegisterValidation("invoice_status", validateInvoiceStatus)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors on failure.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// validateSubdomain validates a tenant subdomain.
func validateSubdomain(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return tenant.ValidateSubdomain(value) == nil
}

// validateRole validates a user role name.
func validateRole(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	_, ok := user.ParseRole(value)
	return ok
}

// validatePlan validates a billing plan name.
func validatePlan(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	_, ok := tenant.ParsePlan(value)
	return ok
}

// validatePermissionResource validates a permission resource name.
func validatePermissionResource(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return user.Resource(value).IsValid()
}

// validatePermissionLevel validates a permission level name.
func validatePermissionLevel(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return user.Level(value).IsValid()
}

// validateCostCategory validates a cost category name.
func validateCostCategory(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return cost.Category(value).IsValid()
}

// validateProjectStatus validates a project status name.
func validateProjectStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return project.Status(value).IsValid()
}

// validateInvoiceStatus validates an invoice status name.
func validateInvoiceStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return invoice.Status(value).IsValid()
}

// formatErrorMessage converts validation errors to human-readable messages.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "subdomain":
		return "must be lowercase letters, numbers, and hyphens, starting and ending with a letter or number"
	case "role":
		return "must be one of: master, entry, view"
	case "plan":
		return "must be one of: free, standard, premium"
	case "permission_resource":
		return fmt.Sprintf("must be one of: %s", formatResources())
	case "permission_level":
		return "must be one of: none, read, write"
	case "cost_category":
		return fmt.Sprintf("must be one of: %s", formatCategories())
	case "project_status":
		return "must be one of: planning, active, on_hold, completed"
	case "invoice_status":
		return "must be one of: draft, sent, paid, overdue, voided"
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

func formatResources() string {
	resources := user.AllResources()
	strs := make([]string, len(resources))
	for i, r := range resources {
		strs[i] = string(r)
	}
	return strings.Join(strs, ", ")
}

func formatCategories() string {
	categories := cost.Categories()
	strs := make([]string, len(categories))
	for i, c := range categories {
		strs[i] = string(c)
	}
	return strings.Join(strs, ", ")
}
