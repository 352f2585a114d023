package order

import (
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// Address is the delivery address frozen into an order.
type Address struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"required,max=32"`
	Line  string `json:"line" validate:"required,max=500"`
	City  string `json:"city" validate:"required,max=120"`
}

// InvalidAddressError names the address field that failed validation.
type InvalidAddressError struct {
	Field   string
	Message string
}

func (e *InvalidAddressError) Error() string {
	return e.Message
}

var (
	validate   = validator.New()
	translator ut.Translator
)

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}
}

// Normalize trims surrounding whitespace from every field.
func (a Address) Normalize() Address {
	return Address{
		Name:  strings.TrimSpace(a.Name),
		Phone: strings.TrimSpace(a.Phone),
		Line:  strings.TrimSpace(a.Line),
		City:  strings.TrimSpace(a.City),
	}
}

// Validate reports the first invalid field as *InvalidAddressError.
func (a Address) Validate() error {
	err := validate.Struct(a)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &InvalidAddressError{
		Field:   "address." + fe.Field(),
		Message: "address " + fe.Translate(translator),
	}
}
