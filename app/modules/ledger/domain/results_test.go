package ledgerdomain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseResultsText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []ResultRow
	}{
		{
			name: "common separators",
			text: "1. Steve\n#2 Alex\n.3-Notch\n4: Herobrine\n5 - Jeb_",
			want: []ResultRow{
				{Position: 1, Nick: "Steve"},
				{Position: 2, Nick: "Alex"},
				{Position: 3, Nick: "Notch"},
				{Position: 4, Nick: "Herobrine"},
				{Position: 5, Nick: "Jeb_"},
			},
		},
		{
			name: "skips blank and noise lines",
			text: "Leaderboard\n\n   \n  7.   Padded Name  \nno number here",
			want: []ResultRow{{Position: 7, Nick: "Padded Name"}},
		},
		{
			name: "drops out of range positions",
			text: "0. Zero\n128. Last\n129. TooFar",
			want: []ResultRow{{Position: 128, Nick: "Last"}},
		},
		{
			name: "windows line endings",
			text: "1. One\r\n2. Two\r\n",
			want: []ResultRow{{Position: 1, Nick: "One"}, {Position: 2, Nick: "Two"}},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResultsText(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseResultsText() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseResultLineRequiresSeparator(t *testing.T) {
	if _, ok := ParseResultLine("12Steve"); ok {
		t.Fatal("expected a line without separator to be rejected")
	}
}
