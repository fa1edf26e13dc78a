// Package nameutil provides identifier validation for change IDs and
// snapshot labels.
package nameutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/EpykLab/gryt-ci/pkg/errclass"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateChangeID checks a change identifier (e.g. "FEAT-12", "BUG-3").
func ValidateChangeID(id string) error {
	return validate(id, "change id")
}

// ValidateLabel checks a snapshot label.
func ValidateLabel(label string) error {
	return validate(label, "label")
}

func validate(name, what string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessagef("%s must not be empty", what)
	}

	// NFC normalize before checking so visually identical identifiers
	// cannot live under distinct byte sequences.
	name = norm.NFC.String(name)

	if strings.Contains(name, "..") {
		return errclass.ErrNameInvalid.WithMessagef("%s must not contain '..': %s", what, name)
	}
	if strings.ContainsAny(name, "/\\") {
		return errclass.ErrNameInvalid.WithMessagef("%s must not contain separators: %s", what, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("%s must not contain control characters: %q", what, name)
		}
	}
	if !nameRegex.MatchString(name) {
		return errclass.ErrNameInvalid.WithMessagef("%s must match [a-zA-Z0-9._-]+: %s", what, name)
	}
	return nil
}
