package domain

// BudgetRange is the inclusive price range, in AED.
type BudgetRange struct {
	Min int64 `yaml:"min" json:"min"`
	Max int64 `yaml:"max" json:"max"`
}

// UserPreferences describes what the user is looking for. It is loaded once at
// startup and never mutated afterwards.
type UserPreferences struct {
	PropertyType   string      `yaml:"property_type" json:"property_type"`
	PreferredAreas []string    `yaml:"preferred_areas" json:"preferred_areas"`
	BudgetRange    BudgetRange `yaml:"budget_range" json:"budget_range"`
	Bedrooms       string      `yaml:"bedrooms" json:"bedrooms"`
	Purpose        string      `yaml:"purpose" json:"purpose"`
	Amenities      []string    `yaml:"amenities" json:"amenities"`
}

func DefaultUserPreferences() UserPreferences {
	return UserPreferences{
		PropertyType:   "Apartment",
		PreferredAreas: []string{"Dubai Marina", "Downtown Dubai", "Palm Jumeirah"},
		BudgetRange:    BudgetRange{Min: 500000, Max: 2000000},
		Bedrooms:       "2",
		Purpose:        "Buy",
		Amenities:      []string{"Swimming Pool", "Gym", "Parking"},
	}
}
