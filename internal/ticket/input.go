package ticket

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/helpdesk/internal/model"
	"github.com/hitoshi/helpdesk/internal/security"
)

// Input はチケット作成・更新フォームの入力値。
// 所有者を表すフィールドは持たない。
type Input struct {
	Title    string `validate:"required,max=255"`
	Body     string `validate:"required,max=10000"`
	Priority string `validate:"required,oneof=low medium high"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// normalize はHTMLを除去し、priorityを小文字に揃えた入力を返す。
func (in Input) normalize(s security.TextSanitizer) Input {
	return Input{
		Title:    s.Sanitize(in.Title),
		Body:     s.Sanitize(in.Body),
		Priority: strings.ToLower(strings.TrimSpace(in.Priority)),
	}
}

// Validate は入力値を検証し、失敗した場合は*model.APIErrorを返す。
func (in Input) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.NewValidationError(err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return model.NewValidationError(strings.Join(msgs, " "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid.", fe.Field())
	}
}
