package protocol

import "strings"

// QueueKey folds a project name into a filesystem-safe key for durable
// queue records. Non-alphanumeric runes become underscores and the result
// is lowercased, so keys collide case-insensitively ("My-App" and "my_app"
// share one queue document).
func QueueKey(projectName string) string {
	var b strings.Builder
	b.Grow(len(projectName))
	for _, r := range strings.ToLower(projectName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
