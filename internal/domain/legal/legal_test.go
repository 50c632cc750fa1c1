package legal

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		query  string
		want   Tag
		wantOK bool
	}{
		{"Comment créer une société au Maroc ?", CommercialLaw, true},
		{"كيف أسس شركة في المغرب؟", CommercialLaw, true},
		{"Quelle est la peine pour le VOL ?", PenalLaw, true},
		{"ما هي شروط الطلاق؟", FamilyLaw, true},
		{"licenciement abusif", LaborLaw, true},
		{"impôt sur le revenu", TaxLaw, true},
		{"hello", Undetermined, false},
		{"", Undetermined, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := Detect(tt.query)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Detect(%q) = (%q, %v), want (%q, %v)", tt.query, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDetect_FirstDomainWins(t *testing.T) {
	// "contrat" is civil, "travail" is labor; civil comes first in the table.
	got, _ := Detect("contrat de travail")
	if got != CivilLaw {
		t.Errorf("Detect = %q, want %q", got, CivilLaw)
	}
}

func TestParse(t *testing.T) {
	if tag, err := Parse(""); err != nil || tag != Undetermined {
		t.Errorf("Parse(\"\") = (%q, %v)", tag, err)
	}
	if tag, err := Parse("tax_law"); err != nil || tag != TaxLaw {
		t.Errorf("Parse(tax_law) = (%q, %v)", tag, err)
	}
	if _, err := Parse("space_law"); err == nil {
		t.Error("Parse(space_law) expected error")
	}
}

func TestAll(t *testing.T) {
	all := All()
	if len(all) != 8 {
		t.Fatalf("All() len = %d, want 8", len(all))
	}
	if all[0] != PenalLaw || all[7] != Consumer {
		t.Errorf("unexpected order: %v", all)
	}
}
