package common

import (
	"github.com/google/uuid"
)

// NewClientID generates a unique streaming client ID with the "client_" prefix
// Format: client_<uuid>
func NewClientID() string {
	return "client_" + uuid.New().String()
}
