// Package forms validates the input of the login, register and
// forgot-password commands before anything is sent to the server.
package forms

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/safekart/safekart/internal/errors"
	"github.com/safekart/safekart/internal/platform"
	"github.com/safekart/safekart/internal/session"
)

// Form is a set of user input that can be checked field by field.
type Form interface {
	// Validate trims the input and returns field -> message for every
	// invalid field. An empty map means the form is valid.
	Validate() map[string]string
}

// Check validates f and returns an AUTH-002 error listing every problem.
func Check(f Form) error {
	if problems := f.Validate(); len(problems) > 0 {
		return errors.NewInvalidInputError(problems)
	}
	return nil
}

// messages holds the text shown for a failed rule, by struct field and tag.
var messages = map[string]map[string]string{
	"Email": {
		"required": "Email is required",
		"email":    "Please enter a valid email",
	},
	"Password": {
		"required": "Password is required",
		"min":      "Password must be at least 6 characters",
	},
	"ConfirmPassword": {
		"required": "Please confirm your password",
		"eqfield":  "Passwords do not match",
	},
	"FullName": {
		"min": "Name must be at least 3 characters",
	},
	"Role": {
		"oneof": "Role must be customer or vendor",
	},
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

func run(form any) map[string]string {
	problems := make(map[string]string)
	err := getValidator().Struct(form)
	if err == nil {
		return problems
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		problems["form"] = err.Error()
		return problems
	}
	for _, fe := range verrs {
		if _, seen := problems[fe.Field()]; seen {
			continue
		}
		msg, ok := messages[fe.StructField()][fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		problems[fe.Field()] = msg
	}
	return problems
}

// Login is the login command input.
type Login struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=6"`
}

func (f *Login) Validate() map[string]string {
	f.Email = strings.TrimSpace(f.Email)
	return run(f)
}

// Register is the register command input. FullName, Phone and Role are
// optional.
type Register struct {
	FullName        string `form:"full_name" validate:"omitempty,min=3"`
	Email           string `form:"email" validate:"required,email"`
	Phone           string `form:"phone"`
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
	Role            string `form:"role" validate:"omitempty,oneof=customer vendor"`
}

func (f *Register) Validate() map[string]string {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Role = strings.ToLower(strings.TrimSpace(f.Role))
	return run(f)
}

// Params converts the form into manager input. Blank optional fields
// become nil.
func (f *Register) Params() session.RegisterParams {
	p := session.RegisterParams{
		Email:    f.Email,
		Password: f.Password,
		Role:     f.Role,
	}
	if p.Role == "" {
		p.Role = platform.RoleCustomer
	}
	if f.FullName != "" {
		name := f.FullName
		p.FullName = &name
	}
	if f.Phone != "" {
		phone := f.Phone
		p.Phone = &phone
	}
	return p
}

// ForgotPassword is the forgot-password command input.
type ForgotPassword struct {
	Email string `form:"email" validate:"required,email"`
}

func (f *ForgotPassword) Validate() map[string]string {
	f.Email = strings.TrimSpace(f.Email)
	return run(f)
}
