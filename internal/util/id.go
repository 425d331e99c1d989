// Package util provides logging, identifiers and statistics presentation
// shared by the client packages.
package util

import (
	"strings"

	"github.com/google/uuid"
)

// clientIDLength keeps generated ids short enough to read out and type.
const clientIDLength = 8

// NewClientID returns a random client identifier for the signaling relay.
func NewClientID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:clientIDLength]
}
