package db

import "strings"

// IsUniqueViolation reports whether err is a Postgres unique violation.
// When constraintName is given only that constraint counts as a match.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}
