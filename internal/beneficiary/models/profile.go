package models

import (
	dErrors "sahara/pkg/domain-errors"
)

const (
	MaxNameLen              = 100
	MaxPhoneLen             = 20
	MaxCountryLen           = 2
	MaxRegionLen            = 100
	MaxCityLen              = 100
	MaxAreaLen              = 200
	MaxDamageDescriptionLen = 500
	MaxReasonLen            = 500
	MaxNotesLen             = 500

	MinFamilySize     = 1
	MaxFamilySize     = 50
	MinDamageSeverity = 1
	MaxDamageSeverity = 10
)

// Location is where the beneficiary was registered.
type Location struct {
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	City      string  `json:"city"`
	Area      string  `json:"area"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return dErrors.New(dErrors.CodeInvalidLocation, "coordinates out of range")
	}
	if len(l.Country) > MaxCountryLen {
		return dErrors.New(dErrors.CodeStringTooLong, "country code must be 2 characters or less")
	}
	if len(l.Region) > MaxRegionLen || len(l.City) > MaxCityLen {
		return dErrors.New(dErrors.CodeStringTooLong, "region and city must be 100 characters or less")
	}
	if len(l.Area) > MaxAreaLen {
		return dErrors.New(dErrors.CodeStringTooLong, "area must be 200 characters or less")
	}
	return nil
}

// Profile is the intake data a field agent records and may later correct.
type Profile struct {
	Name              string   `json:"name"`
	PhoneNumber       string   `json:"phone_number"`
	Location          Location `json:"location"`
	FamilySize        uint8    `json:"family_size"`
	DamageSeverity    uint8    `json:"damage_severity"`
	DamageDescription string   `json:"damage_description"`
}

func (p Profile) Validate() error {
	if p.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(p.Name) > MaxNameLen {
		return dErrors.New(dErrors.CodeStringTooLong, "name must be 100 characters or less")
	}
	if len(p.PhoneNumber) > MaxPhoneLen {
		return dErrors.New(dErrors.CodeStringTooLong, "phone number must be 20 characters or less")
	}
	if err := p.Location.Validate(); err != nil {
		return err
	}
	if p.FamilySize < MinFamilySize || p.FamilySize > MaxFamilySize {
		return dErrors.New(dErrors.CodeInvalidFamilySize, "family size must be between 1 and 50")
	}
	if p.DamageSeverity < MinDamageSeverity || p.DamageSeverity > MaxDamageSeverity {
		return dErrors.New(dErrors.CodeInvalidDamageSeverity, "damage severity must be between 1 and 10")
	}
	if len(p.DamageDescription) > MaxDamageDescriptionLen {
		return dErrors.New(dErrors.CodeStringTooLong, "damage description must be 500 characters or less")
	}
	return nil
}

// ProfilePatch carries the fields an update changes; nil fields are left alone.
type ProfilePatch struct {
	Name              *string
	PhoneNumber       *string
	Location          *Location
	FamilySize        *uint8
	DamageSeverity    *uint8
	DamageDescription *string
}

func (p ProfilePatch) IsEmpty() bool {
	return p == ProfilePatch{}
}

// ApplyTo returns profile with the patch applied.
func (p ProfilePatch) ApplyTo(profile Profile) Profile {
	if p.Name != nil {
		profile.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		profile.PhoneNumber = *p.PhoneNumber
	}
	if p.Location != nil {
		profile.Location = *p.Location
	}
	if p.FamilySize != nil {
		profile.FamilySize = *p.FamilySize
	}
	if p.DamageSeverity != nil {
		profile.DamageSeverity = *p.DamageSeverity
	}
	if p.DamageDescription != nil {
		profile.DamageDescription = *p.DamageDescription
	}
	return profile
}
