package common

import "testing"

func TestPluralizeCoins(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "монет"},
		{1, "монета"},
		{2, "монеты"},
		{4, "монеты"},
		{5, "монет"},
		{11, "монет"},
		{12, "монет"},
		{14, "монет"},
		{21, "монета"},
		{22, "монеты"},
		{30, "монет"},
		{101, "монета"},
	}
	for _, c := range cases {
		if got := PluralizeCoins(c.n); got != c.want {
			t.Fatalf("PluralizeCoins(%d) = %q, ожидалось %q", c.n, got, c.want)
		}
	}
}

func TestFormatCoinsAmount(t *testing.T) {
	if got := FormatCoinsAmount(30); got != "+30 монет" {
		t.Fatalf("FormatCoinsAmount(30) = %q", got)
	}
	if got := FormatCoinsAmount(-2); got != "-2 монеты" {
		t.Fatalf("FormatCoinsAmount(-2) = %q", got)
	}
}
