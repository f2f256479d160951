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
	RunID      ID
	GeneID     string
	SampleName string
	Condition  string
)

func (id RunID) String() string     { return ID(id).String() }
func (g GeneID) String() string     { return string(g) }
func (s SampleName) String() string { return string(s) }
func (c Condition) String() string  { return string(c) }

// ParseGeneID parses a string into a GeneID
func ParseGeneID(s string) (GeneID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("gene identifier cannot be empty")
	}
	return GeneID(s), nil
}

// ParseSampleName parses a string into a SampleName
func ParseSampleName(s string) (SampleName, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("sample name cannot be empty")
	}
	return SampleName(s), nil
}
