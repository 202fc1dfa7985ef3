package localstore

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidProfileID indicates the local profile name is malformed.
var ErrInvalidProfileID = errors.New("invalid profile ID: must be lowercase alphanumeric with hyphens, 1-64 characters")

// DefaultProfile is the profile used when none is configured.
const DefaultProfile = "default"

// profileIDRegex: lowercase alphanumerics and single hyphens, no leading or
// trailing hyphen, at most 64 characters.
var profileIDRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?$`)

// ValidateProfileID checks a local profile name. Profiles keep separate
// data directories, e.g. one per backend or per person sharing a machine.
func ValidateProfileID(id string) error {
	if id == "" || len(id) > 64 {
		return ErrInvalidProfileID
	}
	if strings.Contains(id, "--") {
		return ErrInvalidProfileID
	}
	if !profileIDRegex.MatchString(id) {
		return ErrInvalidProfileID
	}
	return nil
}
