package http

import (
	"encoding/json"
	"reflect"

	"github.com/gofiber/fiber/v2"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	entranslations "gopkg.in/go-playground/validator.v9/translations/en"
	"gopkg.in/go-playground/validator.v9"

	"github.com/kestrelhq/nlsql/pkg"
)

// DecodeHandlerFunc receives a struct already decoded and validated by
// WithBody, paired with the fiber context.
type DecodeHandlerFunc func(payload any, c *fiber.Ctx) error

var (
	validate *validator.Validate
	uni      *ut.UniversalTranslator
)

func init() {
	enLocale := en.New()
	uni = ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")

	validate = validator.New()
	_ = entranslations.RegisterDefaultTranslations(validate, trans)
}

// WithBody decodes the request body into a fresh instance of the same type
// as sample, rejects unknown JSON fields, validates struct tags, and only
// then invokes h. This mirrors the teacher's decoderHandler.
func WithBody(sample any, h DecodeHandlerFunc) fiber.Handler {
	t := reflect.TypeOf(sample).Elem()

	return func(c *fiber.Ctx) error {
		instance := reflect.New(t).Interface()

		body := c.Body()

		if err := json.Unmarshal(body, instance); err != nil {
			return BadRequest(c, pkg.ValidationError{Title: "Malformed JSON", Message: err.Error()})
		}

		reMarshaled, err := json.Marshal(instance)
		if err != nil {
			return BadRequest(c, pkg.ValidationError{Title: "Malformed JSON", Message: err.Error()})
		}

		var original, known map[string]any

		if err := json.Unmarshal(body, &original); err != nil {
			return BadRequest(c, pkg.ValidationError{Title: "Malformed JSON", Message: err.Error()})
		}

		if err := json.Unmarshal(reMarshaled, &known); err != nil {
			return BadRequest(c, pkg.ValidationError{Title: "Malformed JSON", Message: err.Error()})
		}

		unknown := map[string]any{}

		for k, v := range original {
			if _, ok := known[k]; !ok {
				unknown[k] = v
			}
		}

		if len(unknown) > 0 {
			return BadRequest(c, pkg.ValidationError{
				Title:   "Unexpected Fields in the Request",
				Message: "The request body contains fields not recognized by this endpoint.",
			})
		}

		if err := validate.Struct(instance); err != nil {
			trans, _ := uni.GetTranslator("en")

			fields := map[string]string{}

			if verrs, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range verrs {
					fields[fe.Field()] = fe.Translate(trans)
				}
			}

			return BadRequest(c, pkg.ValidationError{Title: "Bad Request", Message: mapToMessage(fields)})
		}

		return h(instance, c)
	}
}

func mapToMessage(fields map[string]string) string {
	if len(fields) == 0 {
		return "validation failed"
	}

	msg := ""
	for k, v := range fields {
		if msg != "" {
			msg += "; "
		}

		msg += k + ": " + v
	}

	return msg
}
