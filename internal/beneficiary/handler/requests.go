package handler

import (
	"strings"

	"sahara/internal/beneficiary/models"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
)

// LocationRequest is the location portion of intake and update bodies.
type LocationRequest struct {
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	City      string  `json:"city"`
	Area      string  `json:"area"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l LocationRequest) toModel() models.Location {
	return models.Location{
		Country:   strings.ToUpper(strings.TrimSpace(l.Country)),
		Region:    strings.TrimSpace(l.Region),
		City:      strings.TrimSpace(l.City),
		Area:      strings.TrimSpace(l.Area),
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
	}
}

// RegisterRequest is the body for POST /beneficiaries.
type RegisterRequest struct {
	Authority         string          `json:"authority"`
	DisasterID        string          `json:"disaster_id"`
	Name              string          `json:"name"`
	PhoneNumber       string          `json:"phone_number"`
	Location          LocationRequest `json:"location"`
	FamilySize        uint8           `json:"family_size"`
	DamageSeverity    uint8           `json:"damage_severity"`
	DamageDescription string          `json:"damage_description"`

	parsedAuthority id.ActorID
	parsedDisaster  id.DisasterID
	parsedProfile   models.Profile
}

// Validate parses identifiers and checks the profile.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	authority, err := id.ParseActorID(strings.TrimSpace(r.Authority))
	if err != nil {
		return err
	}
	disaster, err := id.ParseDisasterID(strings.TrimSpace(r.DisasterID))
	if err != nil {
		return err
	}
	profile := models.Profile{
		Name:              strings.TrimSpace(r.Name),
		PhoneNumber:       strings.TrimSpace(r.PhoneNumber),
		Location:          r.Location.toModel(),
		FamilySize:        r.FamilySize,
		DamageSeverity:    r.DamageSeverity,
		DamageDescription: strings.TrimSpace(r.DamageDescription),
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	r.parsedAuthority = authority
	r.parsedDisaster = disaster
	r.parsedProfile = profile
	return nil
}

// UpdateRequest is the body for PATCH /beneficiaries/{id}. Omitted fields stay unchanged.
type UpdateRequest struct {
	Name              *string          `json:"name"`
	PhoneNumber       *string          `json:"phone_number"`
	Location          *LocationRequest `json:"location"`
	FamilySize        *uint8           `json:"family_size"`
	DamageSeverity    *uint8           `json:"damage_severity"`
	DamageDescription *string          `json:"damage_description"`

	parsedPatch models.ProfilePatch
}

func (r *UpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	patch := models.ProfilePatch{
		FamilySize:     r.FamilySize,
		DamageSeverity: r.DamageSeverity,
	}
	if r.Name != nil {
		v := strings.TrimSpace(*r.Name)
		patch.Name = &v
	}
	if r.PhoneNumber != nil {
		v := strings.TrimSpace(*r.PhoneNumber)
		patch.PhoneNumber = &v
	}
	if r.DamageDescription != nil {
		v := strings.TrimSpace(*r.DamageDescription)
		patch.DamageDescription = &v
	}
	if r.Location != nil {
		loc := r.Location.toModel()
		patch.Location = &loc
	}
	if patch.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	r.parsedPatch = patch
	return nil
}

// FlagRequest is the body for POST /beneficiaries/{id}/flag.
type FlagRequest struct {
	Reason string `json:"reason"`
}

func (r *FlagRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeFlagReasonRequired, "reason is required")
	}
	if len(r.Reason) > models.MaxReasonLen {
		return dErrors.New(dErrors.CodeStringTooLong, "reason must be 500 characters or less")
	}
	return nil
}

// ReviewRequest is the body for POST /beneficiaries/{id}/review.
type ReviewRequest struct {
	Approve *bool  `json:"approve"`
	Notes   string `json:"notes"`
}

func (r *ReviewRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Approve == nil {
		return dErrors.New(dErrors.CodeValidation, "approve is required")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	if len(r.Notes) > models.MaxNotesLen {
		return dErrors.New(dErrors.CodeStringTooLong, "notes must be 500 characters or less")
	}
	return nil
}
