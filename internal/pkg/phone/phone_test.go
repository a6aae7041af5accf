package phone

import "testing"

func TestE164(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "already_e164", in: "+5561999887766", want: "+5561999887766"},
		{name: "whatsapp_jid_prefix", in: "5561999887766@s.whatsapp.net", want: "+5561999887766"},
		{name: "formatted", in: "(61) 99988-7766", want: "+61999887766"},
		{name: "empty", in: "", want: ""},
		{name: "no_digits", in: "abc", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := E164(tc.in); got != tc.want {
				t.Fatalf("E164(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("+55 (61) 9.9988-7766"); got != "5561999887766" {
		t.Fatalf("Digits = %q", got)
	}
}
