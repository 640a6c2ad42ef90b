// Package collection holds the naming rules for vector collections.
package collection

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/propindex/internal/domain"
)

// MaxNameLength caps a collection name.
const MaxNameLength = 64

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateName checks a collection name: 1-64 chars of [a-zA-Z0-9_-]. Colons are
// excluded because they separate key segments in the store.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required: %w", domain.ErrValidation)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("collection name too long (max %d): %w", MaxNameLength, domain.ErrValidation)
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens: %w", domain.ErrValidation)
	}
	return nil
}
