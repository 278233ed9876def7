package state

import "github.com/google/uuid"

func newDocumentID() string { return uuid.NewString() }

// canonicalID normalizes id to the form the store issues. Identifiers that
// could never have been issued report false and are answered as not found
// without a round trip.
func canonicalID(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
