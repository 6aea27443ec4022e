package classifier

import "testing"

func TestTag(t *testing.T) {
	tests := []struct {
		label string
		want  Tags
	}{
		{"Common Cold", Tags{Communicable: true, Acute: true, Code: "J00"}},
		{"Influenza", Tags{Communicable: true, Acute: true, Code: "J11"}},
		{"Diabetes ", Tags{Communicable: false, Acute: false, Code: "E11"}},
		{"Bronchial Asthma", Tags{Communicable: false, Acute: false, Code: "J45"}},
		{"Migraine", Tags{Communicable: false, Acute: false, Code: "G43"}},
		{"Typhoid", Tags{Communicable: true, Acute: true, Code: "A01"}},
		{"hepatitis A", Tags{Communicable: true, Acute: true, Code: ""}},
		{"Chronic cholestasis", Tags{Communicable: false, Acute: false, Code: ""}},
		{"Fungal infection", Tags{Communicable: false, Acute: true, Code: ""}},
	}
	for _, tt := range tests {
		if got := Tag(tt.label); got != tt.want {
			t.Errorf("Tag(%q) = %+v, want %+v", tt.label, got, tt.want)
		}
	}
}

func TestTag_FirstCodeWins(t *testing.T) {
	// "influenza" is listed before "pneumonia" in the code table.
	if got := Tag("Influenza with pneumonia").Code; got != "J11" {
		t.Fatalf("expected J11, got %q", got)
	}
}
