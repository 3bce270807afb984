package auth

import (
	"github.com/frahmantamala/expense-claims/internal"
	"github.com/frahmantamala/expense-claims/internal/core/common/validation"
	coreuser "github.com/frahmantamala/expense-claims/internal/core/user"
)

type RegisterDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the fields and returns the parsed role.
func (d RegisterDTO) Validate() (coreuser.Role, error) {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required().MaxLength(100)
	v.Field("email", d.Email).Required().Email().MaxLength(255)
	v.Field("password", d.Password).Required().MaxLength(72)
	if appErr := v.Validate(); appErr != nil {
		return "", appErr
	}

	role, ok := coreuser.ParseRole(d.Role)
	if !ok {
		return "", internal.NewValidationFieldError("role", "role must be one of STAFF, MANAGER, FINANCE", internal.ErrCodeInvalidRole)
	}
	return role, nil
}

func (d LoginDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required()
	v.Field("password", d.Password).Required()
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
