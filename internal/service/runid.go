package service

import (
	"github.com/google/uuid"
)

const runIDLen = 8

// NewRunID returns a short random identifier used to correlate the output
// and the logs of a single run.
func NewRunID() string {
	id := uuid.New()
	return id.String()[:runIDLen]
}
