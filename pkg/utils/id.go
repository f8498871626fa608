package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateID generates a unique ID
func GenerateID() string {
	return uuid.NewString()
}

// GenerateRunID generates a run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("run-%s-%s", timestamp, uuid.NewString()[:8])
}

// TrialID returns the stable identifier of a trial inside a run.
// Keys sort by generation then index when compared as strings.
func TrialID(generation, index int) string {
	return fmt.Sprintf("g%04d-t%04d", generation, index)
}
