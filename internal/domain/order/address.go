package order

import (
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the shortest password accepted for account creation.
const MinPasswordLength = 6

// Address is a UK shipping address with the customer's contact details.
// Password is only set when the customer asked for an account and is never
// serialized.
type Address struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"required,max=32"`
	Line1    string `json:"line1" validate:"required,max=200"`
	Line2    string `json:"line2,omitempty" validate:"max=200"`
	City     string `json:"city" validate:"required,max=100"`
	County   string `json:"county,omitempty" validate:"max=100"`
	Postcode string `json:"postcode" validate:"required,ukpostcode"`
	Country  string `json:"country" validate:"required,eq=GB"`
	Password string `json:"-"`
}

// Normalized returns a copy with whitespace trimmed, the postcode upper-cased
// and the country defaulted.
func (a Address) Normalized() Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.County = strings.TrimSpace(a.County)
	a.Postcode = strings.ToUpper(strings.Join(strings.Fields(a.Postcode), " "))
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if a.Country == "" {
		a.Country = Country
	}
	return a
}

// WithoutPassword returns a copy safe to persist.
func (a Address) WithoutPassword() Address {
	a.Password = ""
	return a
}

var postcodeRe = regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z0-9]? ?[0-9][A-Z]{2}$`)

// ValidPostcode reports whether s looks like a UK postcode.
func ValidPostcode(s string) bool {
	return postcodeRe.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// ValidationError lists invalid fields with the message to show for each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func addressValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		if err := v.RegisterValidation("ukpostcode", func(fl validator.FieldLevel) bool {
			return ValidPostcode(fl.Field().String())
		}); err != nil {
			panic(err)
		}
		validate = v
	})
	return validate
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "ukpostcode":
		return "Enter a valid UK postcode."
	case "eq":
		return "We only deliver to the United Kingdom."
	case "max":
		return "This field is too long."
	default:
		return "This field is invalid."
	}
}

// ValidateAddress checks a normalized address. When createAccount is set the
// password must be at least MinPasswordLength characters.
func ValidateAddress(a Address, createAccount bool) error {
	fields := map[string]string{}

	if err := addressValidator().Struct(a); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrap(err, "validate address")
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	if createAccount {
		switch {
		case a.Password == "":
			fields["password"] = "Choose a password to create your account."
		case len([]rune(a.Password)) < MinPasswordLength:
			fields["password"] = "Password must be at least 6 characters."
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
