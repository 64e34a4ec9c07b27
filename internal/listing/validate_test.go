package listing

import (
	"testing"

	"github.com/crosslister/dispatch-be/internal/platform"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Listing)
		platform    platform.Platform
		wantValid   bool
		wantMissing []string
		wantMessage string
	}{
		{
			name:      "complete listing passes mercari",
			mutate:    func(l *Listing) {},
			platform:  platform.Mercari,
			wantValid: true,
		},
		{
			name: "missing price and photos in first-found order",
			mutate: func(l *Listing) {
				l.Price = 0
				l.Photos = nil
			},
			platform:    platform.Mercari,
			wantValid:   false,
			wantMissing: []string{"Price", "Photos"},
			wantMessage: "Missing required fields for Mercari: Price and Photos",
		},
		{
			name: "missing everything common",
			mutate: func(l *Listing) {
				l.Title = " "
				l.Description = ""
				l.Price = -1
				l.Photos = []string{}
			},
			platform:    platform.Depop,
			wantValid:   false,
			wantMissing: []string{"Title", "Description", "Price", "Photos"},
			wantMessage: "Missing required fields for Depop: Title, Description, Price and Photos",
		},
		{
			name: "poshmark layers brand category size original price",
			mutate: func(l *Listing) {
				l.Brand = ""
				l.Size = ""
				l.OriginalPrice = 0
				l.Details.Poshmark = nil
			},
			platform:    platform.Poshmark,
			wantValid:   false,
			wantMissing: []string{"Brand", "Category", "Size", "Original Price"},
		},
		{
			name: "depop requires generic category only",
			mutate: func(l *Listing) {
				l.Category = ""
				l.Brand = ""
				l.Size = ""
			},
			platform:    platform.Depop,
			wantValid:   false,
			wantMissing: []string{"Category"},
			wantMessage: "Missing required fields for Depop: Category",
		},
		{
			name:        "unimplemented platform fails without inspection",
			mutate:      func(l *Listing) {},
			platform:    platform.EBay,
			wantValid:   false,
			wantMessage: "eBay listings are not yet available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := sampleListing()
			tt.mutate(l)

			res := Validate(l, tt.platform)

			assert.Equal(t, tt.wantValid, res.Valid)
			assert.Equal(t, tt.wantMissing, res.Missing)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, res.Message())
			}
			if tt.wantValid {
				assert.Empty(t, res.Message())
			}
		})
	}
}
