package platform

import (
	"fmt"
	"strings"
)

// Platform identifies a target marketplace.
type Platform string

const (
	Mercari  Platform = "mercari"
	Poshmark Platform = "poshmark"
	Depop    Platform = "depop"

	// Recognized but not yet implemented. Jobs cannot be created for these.
	EBay    Platform = "ebay"
	Etsy    Platform = "etsy"
	Grailed Platform = "grailed"
)

// Supported returns the platforms the extension can execute jobs against.
func Supported() []Platform {
	return []Platform{Mercari, Poshmark, Depop}
}

// IsSupported reports whether jobs can be dispatched to p.
func IsSupported(p Platform) bool {
	switch p {
	case Mercari, Poshmark, Depop:
		return true
	}
	return false
}

// IsKnown reports whether p is a recognized marketplace name at all.
func IsKnown(p Platform) bool {
	switch p {
	case Mercari, Poshmark, Depop, EBay, Etsy, Grailed:
		return true
	}
	return false
}

// Parse normalizes a marketplace name from user input.
func Parse(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !IsKnown(p) {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// DisplayName returns the user-facing marketplace name.
func DisplayName(p Platform) string {
	switch p {
	case Mercari:
		return "Mercari"
	case Poshmark:
		return "Poshmark"
	case Depop:
		return "Depop"
	case EBay:
		return "eBay"
	case Etsy:
		return "Etsy"
	case Grailed:
		return "Grailed"
	}
	return string(p)
}
