package domain

import "github.com/google/uuid"

// ParseReference checks that id is a well-formed product or review reference
// and returns its canonical lower-case form.
func ParseReference(id string) (string, bool) {
	if len(id) != 36 {
		return "", false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
