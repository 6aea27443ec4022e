package classifier

import "strings"

// codeEntry maps a label fragment to an ICD-10 code.
type codeEntry struct {
	Fragment string
	Code     string
}

// communicableFragments marks labels as transmissible. Matching is a
// case-insensitive substring test.
var communicableFragments = []string{
	"common cold", "flu", "tuberculosis", "pneumonia", "covid-19",
	"malaria", "dengue", "typhoid", "hepatitis", "chickenpox",
	"measles", "mumps", "influenza",
}

// chronicFragments marks labels as chronic. Anything else is acute.
var chronicFragments = []string{
	"diabetes", "hypertension", "asthma", "arthritis", "chronic",
	"migraine", "allergy", "gerd", "osteoporosis",
}

// codeTable is evaluated in order; the first matching fragment wins.
var codeTable = []codeEntry{
	{"common cold", "J00"},
	{"influenza", "J11"},
	{"pneumonia", "J18"},
	{"diabetes", "E11"},
	{"hypertension", "I10"},
	{"asthma", "J45"},
	{"migraine", "G43"},
	{"dengue", "A90"},
	{"typhoid", "A01"},
	{"malaria", "B54"},
}

// Tag derives categorical attributes for a label. Unknown labels are
// non-communicable, acute, with an empty code.
func Tag(label string) Tags {
	l := strings.ToLower(label)
	return Tags{
		Communicable: containsAny(l, communicableFragments),
		Acute:        !containsAny(l, chronicFragments),
		Code:         lookupCode(l),
	}
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func lookupCode(s string) string {
	for _, e := range codeTable {
		if strings.Contains(s, e.Fragment) {
			return e.Code
		}
	}
	return ""
}
