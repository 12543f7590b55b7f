package user

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ibdp/core"
)

var (
	registrableTag  = "registrable"
	registrableText = "Invalid role"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = "Password must be at least 8 characters long"

	pwdLowerTag  = "pwdlower"
	pwdLowerText = "Password must contain at least one lowercase letter"

	pwdUpperTag  = "pwdupper"
	pwdUpperText = "Password must contain at least one uppercase letter"

	pwdDigitTag  = "pwddigit"
	pwdDigitText = "Password must contain at least one number"

	// ErrMissingFields is reported when any registration field is blank.
	ErrMissingFields = errors.New("All fields are required")
	// ErrAdminRegistration is reported whenever registration is attempted with the ADMIN role.
	ErrAdminRegistration = errors.New("Admin registration is not allowed")
)

// RegisterValidators registers the user validation tags and their translations.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(registrableTag, registrableValidation)
	core.RegisterCustomTranslation(validate, translator, registrableTag, registrableText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, SetPassword{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdLowerTag, pwdLowerText)
	core.RegisterCustomTranslation(validate, translator, pwdUpperTag, pwdUpperText)
	core.RegisterCustomTranslation(validate, translator, pwdDigitTag, pwdDigitText)
}

// Validate cleans the input and checks it: ADMIN first, then blank fields, then format and password policy.
func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email)
	nu.Role = Role(strings.ToUpper(core.CleanString(string(nu.Role))))

	if nu.Role == RoleAdmin {
		return core.NewForbiddenError(ErrAdminRegistration)
	}

	var missing []core.FieldError
	for _, fld := range []struct{ name, val string }{
		{"firstName", nu.FirstName},
		{"lastName", nu.LastName},
		{"email", nu.Email},
		{"password", nu.Password},
		{"role", string(nu.Role)},
	} {
		if fld.val == "" {
			missing = append(missing, core.FieldError{Field: fld.name, Error: "this field is required"})
		}
	}
	if len(missing) > 0 {
		return core.NewValidationError(ErrMissingFields, missing...)
	}

	return validate.Struct(nu)
}

// SetPassword carries a new password through the password policy.
type SetPassword struct {
	Password string `json:"password" validate:"required"`
}

func (sp SetPassword) Validate(validate *validator.Validate) error { return validate.Struct(sp) }

// Custom Validators

// registrableValidation allows only the roles that can be self-registered.
func registrableValidation(fl validator.FieldLevel) bool {
	role := Role(fl.Field().String())
	for _, r := range RegistrableRoles {
		if role == r {
			return true
		}
	}
	return false
}

// userStructValidation does struct level validation on NewUser and SetPassword structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validatePassword(usr.Password, sl)
	case SetPassword:
		validatePassword(usr.Password, sl)
	}
}

func validatePassword(pwd string, sl validator.StructLevel) {
	if pwd == "" { // reported by "required"
		return
	}
	if tag := PasswordPolicyTag(pwd); tag != "" {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}
}

// PasswordPolicyTag returns the tag of the first password rule pwd breaks, or "" when it complies:
// - minLen: 8
// - 1 lowercase letter
// - 1 uppercase letter
// - 1 digit
func PasswordPolicyTag(pwd string) string {
	if len([]rune(pwd)) < pwdMinLen {
		return pwdMinLenTag
	}

	var hasLower, hasUpper, hasDigit bool
	for _, char := range pwd {
		switch {
		case 'a' <= char && char <= 'z':
			hasLower = true
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case '0' <= char && char <= '9':
			hasDigit = true
		}
	}

	switch {
	case !hasLower:
		return pwdLowerTag
	case !hasUpper:
		return pwdUpperTag
	case !hasDigit:
		return pwdDigitTag
	}
	return ""
}
