package listing

import (
	"fmt"
	"strings"

	"github.com/crosslister/dispatch-be/internal/platform"
)

// ValidationResult reports whether a listing has every field a marketplace
// requires. Missing preserves first-found order so messages are stable.
type ValidationResult struct {
	Platform platform.Platform
	Valid    bool
	Missing  []string
}

// Message renders the result as a single user-facing sentence.
func (r ValidationResult) Message() string {
	if r.Valid {
		return ""
	}
	if len(r.Missing) == 0 {
		return fmt.Sprintf("%s listings are not yet available", platform.DisplayName(r.Platform))
	}
	return fmt.Sprintf("Missing required fields for %s: %s",
		platform.DisplayName(r.Platform), joinFields(r.Missing))
}

// Validate checks the listing against the marketplace's required-field rules.
// Unimplemented marketplaces fail without being inspected.
func Validate(l *Listing, p platform.Platform) ValidationResult {
	if !platform.IsSupported(p) {
		return ValidationResult{Platform: p, Valid: false}
	}

	var missing []string

	// Rules common to every marketplace.
	if strings.TrimSpace(l.Title) == "" {
		missing = append(missing, "Title")
	}
	if strings.TrimSpace(l.Description) == "" {
		missing = append(missing, "Description")
	}
	if l.Price <= 0 {
		missing = append(missing, "Price")
	}
	if len(l.Photos) == 0 {
		missing = append(missing, "Photos")
	}

	switch p {
	case platform.Poshmark:
		if strings.TrimSpace(l.Brand) == "" {
			missing = append(missing, "Brand")
		}
		if l.Details.Poshmark == nil || strings.TrimSpace(l.Details.Poshmark.Category) == "" {
			missing = append(missing, "Category")
		}
		if strings.TrimSpace(l.Size) == "" {
			missing = append(missing, "Size")
		}
		if l.OriginalPrice <= 0 {
			missing = append(missing, "Original Price")
		}

	case platform.Depop:
		if strings.TrimSpace(l.Category) == "" {
			missing = append(missing, "Category")
		}
	}

	return ValidationResult{Platform: p, Valid: len(missing) == 0, Missing: missing}
}

// joinFields renders ["A"] as "A", ["A","B"] as "A and B" and
// ["A","B","C"] as "A, B and C".
func joinFields(fields []string) string {
	switch len(fields) {
	case 0:
		return ""
	case 1:
		return fields[0]
	}
	return strings.Join(fields[:len(fields)-1], ", ") + " and " + fields[len(fields)-1]
}
