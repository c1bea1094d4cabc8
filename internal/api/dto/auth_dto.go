package dto

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Behnamfe76/auth-service/internal/auth"
	"github.com/Behnamfe76/auth-service/internal/domain"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// max counts runes; bcrypt limits bytes
	if err := v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= auth.MaxPasswordBytes
	}); err != nil {
		panic(err)
	}
	return v
}

// RegisterRequest payload for POST /auth/register.
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,bcryptlen"`
}

// Normalize trims the name and email fields. The password is kept verbatim.
func (r *RegisterRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
}

// Validate normalizes the request and checks it.
func (r *RegisterRequest) Validate() error {
	r.Normalize()
	return validationError(validate.Struct(r))
}

// UserData converts the request for the service layer.
func (r *RegisterRequest) UserData() domain.UserData {
	return domain.UserData{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Password:  r.Password,
	}
}

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate trims the email and checks the request.
func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return validationError(validate.Struct(r))
}

// IDResponse is returned by register and login.
type IDResponse struct {
	ID int64 `json:"id"`
}

// UserResponse is the public view of a user. It never carries the password hash.
type UserResponse struct {
	ID        int64       `json:"id"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewUserResponse builds the public view of user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

var fieldMessages = map[string]string{
	"FirstName.required": "First name is required!",
	"LastName.required":  "Last name is required!",
	"Email.required":     "Email is required!",
	"Email.email":        "Email should be a valid email",
	"Password.required":  "Password is required!",
	"Password.min":       "Password length should be at least 8 chars!",
	"Password.bcryptlen": "Password length should be at most 72 bytes!",
}

var jsonNames = map[string]string{
	"FirstName": "firstName",
	"LastName":  "lastName",
	"Email":     "email",
	"Password":  "password",
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := jsonNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		if _, seen := details[name]; seen {
			continue
		}
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "invalid value"
		}
		details[name] = msg
	}
	return apperrors.NewValidationError("validation failed", details)
}
