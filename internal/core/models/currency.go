package models

type Currency struct {
	Code       string `json:"code" db:"code"`       // ISO 4217
	Name       string `json:"name" db:"name"`
	MinorUnits int64  `json:"minor_units" db:"minor_units"` // decimal exponent: 2 for cents, 3 for fils
}
