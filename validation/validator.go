package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// PhonePattern is the only accepted national format: the Nigerian calling
// code followed by ten digits.
const PhonePattern = `^\+234[0-9]{10}$`

var (
	phoneRegexp = regexp.MustCompile(PhonePattern)
	validate    = newValidator()
)

type CreateSessionRequest struct {
	Name            string `validate:"required"`
	DurationMinutes int    `validate:"gt=0,lte=525600"`
}

type AddContactRequest struct {
	FullName string `validate:"required"`
	Phone    string `validate:"required,ng_phone"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ng_phone", func(fl validator.FieldLevel) bool {
		return IsValidPhone(fl.Field().String())
	})
	return v
}

func ValidateCreateSession(req CreateSessionRequest) error {
	return validate.Struct(req)
}

func ValidateAddContact(req AddContactRequest) error {
	return validate.Struct(req)
}

func IsValidPhone(phone string) bool {
	return phoneRegexp.MatchString(phone)
}
