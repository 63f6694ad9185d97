package preview

import "testing"

func TestFormatCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1.0K"},
		{1049, "1.0K"},
		{1050, "1.1K"},
		{1950, "2.0K"},
		{12000, "12.0K"},
		{12345, "12.3K"},
		{999999, "1000.0K"},
	}
	for _, tc := range cases {
		if got := FormatCount(tc.n); got != tc.want {
			t.Errorf("FormatCount(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestTrimDescription(t *testing.T) {
	t.Parallel()

	if got := trimDescription("  line one\nline two  ", 100); got != "line one line two" {
		t.Errorf("unexpected: %q", got)
	}

	long := make([]rune, 0, 120)
	for i := 0; i < 120; i++ {
		long = append(long, '测')
	}
	got := trimDescription(string(long), 100)
	if gotRunes := []rune(got); len(gotRunes) != 100 {
		t.Errorf("expected 100 runes, got %d", len(gotRunes))
	}
	if got[len(got)-3:] != "..." {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
}
