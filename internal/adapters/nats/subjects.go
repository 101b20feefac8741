package natsadapter

import "strings"

// Subject roots. Each is suffixed with a session id.
const (
	SubjectRender     = "shopradar.render"
	SubjectViewport   = "shopradar.viewport"
	SubjectForeground = "shopradar.foreground"
	SubjectSettings   = "shopradar.settings"
)

// SessionSubject returns root.<sessionID>.
func SessionSubject(root, sessionID string) string {
	return root + "." + sessionID
}

// SessionFromSubject extracts the session id from a session subject.
func SessionFromSubject(subject string) string {
	if i := strings.LastIndexByte(subject, '.'); i >= 0 {
		return subject[i+1:]
	}
	return subject
}

// ValidSessionID reports whether id can be used as a single subject token
// and consumer name.
func ValidSessionID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
