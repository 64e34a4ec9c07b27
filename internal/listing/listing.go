package listing

// Listing is the snapshot of an item embedded into CREATE jobs. The listing
// subsystem owns the source of truth; jobs carry a copy taken at creation
// time so delivery does not depend on later edits.
type Listing struct {
	ListingID     string   `json:"listing_id"`
	UserID        string   `json:"user_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"original_price,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	Category      string   `json:"category,omitempty"`
	Size          string   `json:"size,omitempty"`
	Color         string   `json:"color,omitempty"`
	Condition     string   `json:"condition,omitempty"`
	WeightLb      int      `json:"weight_lb,omitempty"`
	WeightOz      int      `json:"weight_oz,omitempty"`
	Photos        []string `json:"photos"`
	Tags          []string `json:"tags,omitempty"`

	Details Details `json:"details,omitempty"`
}

// Details carries the per-marketplace metadata overlays. Exactly the variants
// for platforms the listing has been prepared for are non-nil.
type Details struct {
	Mercari  *MercariDetails  `json:"mercari,omitempty"`
	Poshmark *PoshmarkDetails `json:"poshmark,omitempty"`
	Depop    *DepopDetails    `json:"depop,omitempty"`
}

// MercariDetails holds Mercari-native identifiers and shipping metadata.
type MercariDetails struct {
	CategoryID      int    `json:"category_id,omitempty"`
	BrandID         int    `json:"brand_id,omitempty"`
	ShippingCarrier string `json:"shipping_carrier,omitempty"`
	ShippingType    string `json:"shipping_type,omitempty"`
	// WeightOz, when set, replaces the listing's generic weight fields.
	WeightOz *int `json:"weight_oz,omitempty"`
}

// PoshmarkDetails holds Poshmark-native category and styling metadata.
type PoshmarkDetails struct {
	Category       string   `json:"category,omitempty"`
	StyleTags      []string `json:"style_tags,omitempty"`
	ShippingOrigin string   `json:"shipping_origin,omitempty"`
}

// DepopDetails holds Depop category metadata.
type DepopDetails struct {
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
}
