package language

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Language
	}{
		{"arabic", "ما هي عقوبة السرقة؟", Arabic},
		{"french", "Quelle est la peine pour le vol ?", French},
		{"accented french", "héritage et propriété", French},
		{"mixed arabic majority", "السرقة vol", Arabic},
		{"mixed latin majority", "article السرقة du code pénal", French},
		{"digits only", "505", French},
		{"empty", "", French},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.text); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	for _, s := range []string{"", "ar", "fr"} {
		if _, err := Parse(s); err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", s, err)
		}
	}
	if _, err := Parse("en"); err == nil {
		t.Error("Parse(\"en\") expected error")
	}
}

func TestDirection(t *testing.T) {
	if Arabic.Direction() != "rtl" {
		t.Errorf("Arabic.Direction() = %q", Arabic.Direction())
	}
	if French.Direction() != "ltr" {
		t.Errorf("French.Direction() = %q", French.Direction())
	}
}
