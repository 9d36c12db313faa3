package history

import "testing"

func TestParseQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"kwh", "kwh"},
		{"energy", "energy*"},
		{"energy cost", "energy* AND cost*"},
		{`"peak hour"`, `"peak hour"`},
		{"prompt:labtek", "(kind:prompt AND content:labtek*)"},
		{"q:STEI", "(kind:prompt AND content:STEI*)"},
		{"result:", "kind:result"},
		{"answer:weekend", "(kind:result AND content:weekend*)"},
		{"labtek-v", `"labtek-v"`},
		{"AND", `"AND"`},
		{"gedung:labtek", `"gedung:labtek"`},
		{"konsumsi listrik", "konsumsi* AND listrik*"},
	}

	for _, tt := range tests {
		if got := ParseQuery(tt.in); got != tt.want {
			t.Errorf("ParseQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
