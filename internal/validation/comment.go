package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CommentContent trims content and checks it holds 1..maxLen characters.
func CommentContent(content string, maxLen int) (string, error) {
	content = strings.TrimSpace(content)
	if err := validate.Var(content, "required"); err != nil {
		return "", fmt.Errorf("Content is required")
	}
	if err := validate.Var(content, fmt.Sprintf("max=%d", maxLen)); err != nil {
		return "", fmt.Errorf("Comment too long (max %d characters)", maxLen)
	}
	return content, nil
}

// VoteValue checks v is an up or down vote.
func VoteValue(v int) error {
	if err := validate.Var(v, "oneof=1 -1"); err != nil {
		return fmt.Errorf("Vote value must be 1 or -1")
	}
	return nil
}

type flagInput struct {
	Reason string `validate:"oneof=spam abuse hate other"`
	Note   string `validate:"max=255"`
}

// Flag checks a report's reason and note.
func Flag(reason, note string) error {
	err := validate.Struct(flagInput{Reason: reason, Note: note})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Reason":
			return fmt.Errorf("Invalid flag reason")
		case "Note":
			return fmt.Errorf("Note too long (max 255 characters)")
		}
	}
	return err
}
