package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"accounts-api/internal/apierror"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

const maxBodyBytes = 1 << 20

var (
	inputValidator *validator.Validate
	trans          ut.Translator
)

func init() {
	inputValidator = validator.New(validator.WithRequiredStructEnabled())
	inputValidator.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	uni := ut.New(en.New(), en.New())
	trans, _ = uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(inputValidator, trans)
}

// translateValidationError flattens validator errors into one readable message,
// keeping field order.
func translateValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// decodeAndValidate reads a JSON body into obj and runs struct validation.
// Failures come back as 400 errors.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, obj any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(obj); err != nil {
		return apierror.Wrap(http.StatusBadRequest, "invalid request body", err)
	}
	if err := inputValidator.Struct(obj); err != nil {
		return apierror.BadRequest(translateValidationError(err).Error())
	}
	return nil
}
