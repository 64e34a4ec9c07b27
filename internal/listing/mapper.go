package listing

import (
	"fmt"

	"github.com/crosslister/dispatch-be/internal/platform"
)

// MapFor flattens a listing into the payload the extension expects for one
// marketplace: generic fields pass through unchanged and the marketplace's
// detail overlay is hoisted to top-level keys. The listing is not mutated.
func MapFor(l *Listing, p platform.Platform) (map[string]any, error) {
	if !platform.IsSupported(p) {
		return nil, fmt.Errorf("no field mapping for platform %q", p)
	}

	payload := map[string]any{
		"listing_id":  l.ListingID,
		"title":       l.Title,
		"description": l.Description,
		"price":       l.Price,
		"photos":      append([]string(nil), l.Photos...),
		"weight_lb":   l.WeightLb,
		"weight_oz":   l.WeightOz,
	}
	if l.OriginalPrice > 0 {
		payload["original_price"] = l.OriginalPrice
	}
	if l.Brand != "" {
		payload["brand"] = l.Brand
	}
	if l.Category != "" {
		payload["category"] = l.Category
	}
	if l.Size != "" {
		payload["size"] = l.Size
	}
	if l.Color != "" {
		payload["color"] = l.Color
	}
	if l.Condition != "" {
		payload["condition"] = l.Condition
	}
	if len(l.Tags) > 0 {
		payload["tags"] = append([]string(nil), l.Tags...)
	}

	switch p {
	case platform.Mercari:
		if d := l.Details.Mercari; d != nil {
			if d.CategoryID != 0 {
				payload["category_id"] = d.CategoryID
			}
			if d.BrandID != 0 {
				payload["brand_id"] = d.BrandID
			}
			if d.ShippingCarrier != "" {
				payload["shipping_carrier"] = d.ShippingCarrier
			}
			if d.ShippingType != "" {
				payload["shipping_type"] = d.ShippingType
			}
			// A Mercari weight override wins over the listing's generic weight.
			if d.WeightOz != nil {
				payload["weight_lb"] = 0
				payload["weight_oz"] = *d.WeightOz
			}
		}

	case platform.Poshmark:
		if d := l.Details.Poshmark; d != nil {
			if d.Category != "" {
				payload["category"] = d.Category
			}
			if len(d.StyleTags) > 0 {
				payload["style_tags"] = append([]string(nil), d.StyleTags...)
			}
			if d.ShippingOrigin != "" {
				payload["shipping_origin"] = d.ShippingOrigin
			}
		}

	case platform.Depop:
		if d := l.Details.Depop; d != nil {
			if d.Category != "" {
				payload["category"] = d.Category
			}
			if d.Subcategory != "" {
				payload["subcategory"] = d.Subcategory
			}
		}
	}

	return payload, nil
}
