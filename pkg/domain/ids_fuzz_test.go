package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseBeneficiaryID checks that parsing never panics and that every accepted
// input round-trips through String().
func FuzzParseBeneficiaryID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE beneficiaries;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseBeneficiaryID(input)
		if err != nil {
			return
		}
		if id.IsNil() {
			t.Error("nil id accepted")
		}
		roundTrip, err := ParseBeneficiaryID(id.String())
		if err != nil {
			t.Errorf("valid ID failed round-trip: %v", err)
		}
		if roundTrip != id {
			t.Error("round-trip changed ID value")
		}
		if !utf8.ValidString(input) {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

func FuzzParseDisasterID(f *testing.F) {
	f.Add("turkey-eq-2023")
	f.Add("")
	f.Add("../x")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseDisasterID(input)
		if err != nil {
			return
		}
		if len(id) == 0 || len(id) > MaxDisasterIDLen {
			t.Errorf("accepted out-of-range disaster id %q", input)
		}
		if string(id) != input {
			t.Error("disaster id altered during parse")
		}
	})
}
