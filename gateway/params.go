package gateway

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Keksclan/swrgate/apierror"
)

type userParams struct {
	UserID int64 `json:"userId" validate:"gt=0"`
}

var messages = map[string]string{
	"gt":       "Expected positive number",
	"required": "userId is required",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// parseUserID turns the raw path segment into a positive id. Leading zeros
// are accepted ("02" is 2).
func (h *Handler) parseUserID(raw string) (int64, error) {
	if raw == "" {
		return 0, invalidUserID(messages["required"])
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, invalidUserID("Expected number, received string")
	}

	p := userParams{UserID: id}
	if err := h.validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return 0, err
		}
		details := apierror.Details{}
		for _, fe := range verrs {
			msg, ok := messages[fe.Tag()]
			if !ok {
				msg = "Invalid value"
			}
			details[fe.Field()] = append(details[fe.Field()], msg)
		}
		return 0, apierror.New(apierror.CodeInvalidParameter, "Invalid parameter").WithDetails(details)
	}
	return p.UserID, nil
}

func invalidUserID(msg string) *apierror.Error {
	return apierror.New(apierror.CodeInvalidParameter, "Invalid parameter").
		WithDetails(apierror.Details{"userId": {msg}})
}
