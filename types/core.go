package types

import (
	"sort"
	"time"
)

// Status values derived from a case's closed flag
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Case represents a case record loaded from the remote case API
type Case struct {
	ID         string            // Natural key assigned by the remote system
	TypeID     string            // Case type tag, e.g. "pregnancy"
	Name       string            // Display name
	Closed     bool              // Whether the case has been closed
	DateOpened *time.Time        // Optional opening timestamp (UTC)
	UserID     string            // Owning user, empty if absent
	Properties map[string]string // Case properties; never holds a key whose wire value was null
	Indices    map[string]Index  // Named relations to other cases
}

// Index is a named relation from one case to another
type Index struct {
	CaseType string // Type tag of the target case
	CaseID   string // Natural key of the target case
}

// NewCase creates an open case with empty property and index sets
func NewCase(id, typeID, name string) *Case {
	return &Case{
		ID:         id,
		TypeID:     typeID,
		Name:       name,
		Properties: make(map[string]string),
		Indices:    make(map[string]Index),
	}
}

// Status returns "closed" for closed cases and "open" otherwise
func (c *Case) Status() string {
	if c.Closed {
		return StatusClosed
	}
	return StatusOpen
}

// Property returns a case property and whether it was set
func (c *Case) Property(name string) (string, bool) {
	v, ok := c.Properties[name]
	return v, ok
}

// SetProperty records a property value
func (c *Case) SetProperty(name, value string) {
	if c.Properties == nil {
		c.Properties = make(map[string]string)
	}
	c.Properties[name] = value
}

// SetIndex records a named relation to another case
func (c *Case) SetIndex(name, caseType, caseID string) {
	if c.Indices == nil {
		c.Indices = make(map[string]Index)
	}
	c.Indices[name] = Index{CaseType: caseType, CaseID: caseID}
}

// PropertyNames returns the property names in lexical order
func (c *Case) PropertyNames() []string {
	names := make([]string, 0, len(c.Properties))
	for name := range c.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IndexNames returns the relation names in lexical order
func (c *Case) IndexNames() []string {
	names := make([]string, 0, len(c.Indices))
	for name := range c.Indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
