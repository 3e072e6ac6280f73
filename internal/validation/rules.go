// Package validation provides the request rules shared by the HTTP DTOs.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

// MaxMetadataBytes bounds the encoded size of session metadata.
const MaxMetadataBytes = 4096

var callerIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:@\-]{1,128}$`)

// WrapValidationError turns a validation failure into apperrors.ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

func stringRule(code, message string, ok func(string) bool) validation.StringRule {
	return validation.NewStringRuleWithError(ok, validation.NewError(code, message))
}

var (
	// NotBlank rejects strings made only of whitespace.
	NotBlank = stringRule("validation_not_blank", "must not be blank", func(s string) bool {
		return strings.TrimSpace(s) != ""
	})

	// CallerID accepts an opaque identifier of 1-128 letters, digits or ._:@-
	CallerID = stringRule("validation_caller_id", "must be 1-128 characters of letters, digits or ._:@-",
		callerIDPattern.MatchString)

	UUID = stringRule("validation_uuid", "must be a valid UUID", func(s string) bool {
		return uuid.Validate(s) == nil
	})
)

// Metadata checks that a metadata map encodes to JSON within MaxMetadataBytes.
var Metadata = validation.By(func(value any) error {
	metadata, _ := value.(map[string]any)
	if len(metadata) == 0 {
		return nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return validation.NewError("validation_metadata", "must be JSON encodable")
	}
	if len(encoded) > MaxMetadataBytes {
		return validation.NewError(
			"validation_metadata_size",
			fmt.Sprintf("must encode to at most %d bytes", MaxMetadataBytes),
		)
	}
	return nil
})
