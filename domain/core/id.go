package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	StudyID    ID
	EndpointID ID
	TraceID    ID
)

// String conversions for domain IDs
func (id StudyID) String() string    { return ID(id).String() }
func (id EndpointID) String() string { return ID(id).String() }
func (id TraceID) String() string    { return ID(id).String() }

// ParseStudyID parses a string into StudyID
func ParseStudyID(s string) (StudyID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("study ID cannot be empty")
	}
	return StudyID(s), nil
}

// ParseEndpointID parses a string into EndpointID
func ParseEndpointID(s string) (EndpointID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("endpoint ID cannot be empty")
	}
	return EndpointID(s), nil
}
