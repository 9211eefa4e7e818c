package domain

import "testing"

func TestNextStatus(t *testing.T) {
	cases := []struct {
		prior       MessageStatus
		fromContact bool
		want        MessageStatus
	}{
		{StatusNeedsResponse, false, StatusConvo},
		{StatusConvo, false, StatusMessaged},
		{StatusMessaged, false, StatusMessaged},
		{StatusNeedsMessage, false, StatusMessaged},
		{StatusClosed, false, StatusMessaged},
		{StatusNeedsResponse, true, StatusNeedsResponse},
		{StatusConvo, true, StatusNeedsResponse},
		{StatusMessaged, true, StatusNeedsResponse},
		{StatusClosed, true, StatusNeedsResponse},
		{"", true, StatusNeedsResponse},
	}
	for _, c := range cases {
		got := NextStatus(c.prior, c.fromContact)
		if got != c.want {
			t.Fatalf("NextStatus(%q, fromContact=%v) = %q, want %q", c.prior, c.fromContact, got, c.want)
		}
	}
}
