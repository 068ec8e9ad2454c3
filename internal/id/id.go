package id

import "github.com/google/uuid"

// New returns a random run id.
func New() string {
	return uuid.NewString()
}
