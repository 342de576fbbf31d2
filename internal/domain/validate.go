package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"unicode/utf8"
)

const maxBodyLength = 1600

// destinationPattern matches international destination numbers: a leading +,
// a digit 1-9, then 1 to 14 further digits. No separators.
var destinationPattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Validate checks the request against format and business rules before any
// network effort is spent. All rules are evaluated independently and every
// violation is collected; a nil return means the request is valid.
func (r SendRequest) Validate() error {
	var violations []ValidationError

	if r.To == "" {
		violations = append(violations, NewValidationError("to", "destination is required"))
	} else if !destinationPattern.MatchString(r.To) {
		violations = append(violations, NewValidationError("to", "must be an international number like +15551234567"))
	}

	if utf8.RuneCountInString(r.Body) > maxBodyLength {
		violations = append(violations, NewValidationError("body", fmt.Sprintf("must not exceed %d characters", maxBodyLength)))
	}

	for i, raw := range r.MediaURLs {
		field := fmt.Sprintf("mediaUrls[%d]", i)
		u, err := url.Parse(raw)
		if err != nil {
			violations = append(violations, NewValidationError(field, "must be a valid URL"))
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			violations = append(violations, NewValidationError(field, "must use http or https"))
		}
	}

	if r.Body == "" && len(r.MediaURLs) == 0 {
		violations = append(violations, NewValidationError("body", "content required: body or mediaUrls must be provided"))
	}

	if len(violations) > 0 {
		return ValidationErrors{Errors: violations}
	}
	return nil
}
