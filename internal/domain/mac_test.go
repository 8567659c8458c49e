package domain

import "testing"

func TestNormalizeMAC(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF"},
		{"AA:BB:CC:DD:EE:FF", "AA:BB:CC:DD:EE:FF"},
		{"aa-bb-cc-dd-ee-ff", "AA:BB:CC:DD:EE:FF"},
		{"aabb.ccdd.eeff", "AA:BB:CC:DD:EE:FF"},
		{"aabbccddeeff", "AA:BB:CC:DD:EE:FF"},
		{"  aabbccddeeff ", "AA:BB:CC:DD:EE:FF"},
		// too short: passed through, uppercased
		{"aabbcc", "AABBCC"},
		// non-hex characters: passed through
		{"not-a-mac", "NOT-A-MAC"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeMAC(c.in); got != c.want {
			t.Errorf("NormalizeMAC(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGroupKey(t *testing.T) {
	if got := GroupKey("AA:BB:CC:DD:EE:FF", "Rex"); got != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("GroupKey with mac = %q, want mac", got)
	}
	if got := GroupKey("", "Rex"); got != "Rex" {
		t.Errorf("GroupKey with name only = %q, want name", got)
	}
	if got := GroupKey("", ""); got != "global" {
		t.Errorf("GroupKey empty = %q, want global", got)
	}
}
