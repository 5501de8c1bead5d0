// Package extract pulls identifying fields out of raw resume text.
package extract

import (
	"regexp"
	"strings"
)

// Field names reported in Result.Missing.
const (
	FieldName  = "name"
	FieldEmail = "email"
	FieldPhone = "phone"
)

var (
	nameRe  = regexp.MustCompile(`[A-Z][a-z]+ [A-Z][a-z]+`)
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
	phoneRe = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\d{10}`)
)

// Identity holds the candidate fields the interview needs before it can start.
// An empty value means the field is unresolved.
type Identity struct {
	Name  string `json:"name" mapstructure:"name"`
	Email string `json:"email" mapstructure:"email"`
	Phone string `json:"phone" mapstructure:"phone"`
}

// Result is the outcome of a single extraction.
type Result struct {
	Identity Identity
	Missing  []string
}

// IsComplete reports whether every field was resolved.
func (r Result) IsComplete() bool {
	return len(r.Missing) == 0
}

// Extract runs the best-effort field patterns over raw text.
func Extract(raw string) Result {
	id := Identity{
		Name:  nameRe.FindString(raw),
		Email: emailRe.FindString(raw),
		Phone: phoneRe.FindString(raw),
	}

	return Result{Identity: id, Missing: id.MissingFields()}
}

// MissingFields lists unresolved fields in a stable order.
func (i Identity) MissingFields() []string {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(i.Name) == "" {
		missing = append(missing, FieldName)
	}
	if strings.TrimSpace(i.Email) == "" {
		missing = append(missing, FieldEmail)
	}
	if strings.TrimSpace(i.Phone) == "" {
		missing = append(missing, FieldPhone)
	}
	return missing
}

// Fill copies trimmed non-empty values from other into fields that are still
// unresolved. Resolved fields are never overwritten.
func (i Identity) Fill(other Identity) Identity {
	if strings.TrimSpace(i.Name) == "" {
		i.Name = strings.TrimSpace(other.Name)
	}
	if strings.TrimSpace(i.Email) == "" {
		i.Email = strings.TrimSpace(other.Email)
	}
	if strings.TrimSpace(i.Phone) == "" {
		i.Phone = strings.TrimSpace(other.Phone)
	}
	return i
}

// DisplayName returns the name or a placeholder when it is unresolved.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	return "Unknown"
}
