package sessions

import (
	"strings"

	"streamwatch/models"
)

// Reorder partitions a snapshot into sessions owned by the current user
// and everyone else's, owned first. The partition is stable: each half
// keeps its relative order from the input. The input is not modified.
func Reorder(list []models.Session, identity models.Credential) []models.Session {
	owned := make([]models.Session, 0, len(list))
	others := make([]models.Session, 0, len(list))
	for _, sess := range list {
		if Owned(sess, identity) {
			owned = append(owned, sess)
		} else {
			others = append(others, sess)
		}
	}
	return append(owned, others...)
}

// Owned reports whether a session belongs to the credential's identity.
// Match precedence, first match wins: UUID (case-insensitive) → numeric
// account id (0 means unset on either side) → normalized email →
// normalized display name. The order mirrors observed server behavior
// with stale identity fields and is preserved deliberately.
func Owned(sess models.Session, identity models.Credential) bool {
	if sess.User.UUID != "" && identity.UUID != "" &&
		strings.EqualFold(sess.User.UUID, identity.UUID) {
		return true
	}
	if sess.User.ID != 0 && identity.AccountID != 0 &&
		sess.User.ID == identity.AccountID {
		return true
	}
	if sess.User.Email != "" && identity.Email != "" &&
		normalize(sess.User.Email) == normalize(identity.Email) {
		return true
	}
	if sess.User.Title != "" && identity.Username != "" &&
		normalize(sess.User.Title) == normalize(identity.Username) {
		return true
	}
	return false
}

// Reconcile computes the selection for a reordered snapshot. Precedence:
// empty list → sentinel 0; anchor rating key present → its new position
// (selection tracks content identity, not position); any owned session →
// the first one; otherwise the prior index clamped into bounds.
func Reconcile(list []models.Session, anchorKey string, prior int, identity models.Credential) int {
	if len(list) == 0 {
		return 0
	}
	if anchorKey != "" {
		for i, sess := range list {
			if sess.RatingKey == anchorKey {
				return i
			}
		}
	}
	for i, sess := range list {
		if Owned(sess, identity) {
			return i
		}
	}
	if prior >= len(list) {
		return len(list) - 1
	}
	if prior < 0 {
		return 0
	}
	return prior
}

// normalize prepares identity strings for comparison: trim, lowercase,
// collapse internal whitespace runs to a single space.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
