package export

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wesm/imsgexport/internal/chatdb"
	"github.com/wesm/imsgexport/internal/testutil/ptr"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	want := ptr.Date(2024, time.March, 15)
	if !got.Equal(want) {
		t.Errorf("ParseDate = %v, want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
}

func TestParseDate_Invalid(t *testing.T) {
	inputs := []string{
		"15-03-2024",
		"2024/03/15",
		"2024-13-01",
		"2024-02-30",
		"yesterday",
		"2024-03-15T00:00:00Z",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDate(in)
			if err == nil {
				t.Fatalf("ParseDate(%q) expected error", in)
			}
			var exportErr *Error
			if !errors.As(err, &exportErr) || exportErr.Kind != KindArgument {
				t.Fatalf("err = %v, want KindArgument", err)
			}
			if want := `"` + in + `"`; !strings.Contains(exportErr.Error(), want) {
				t.Errorf("error %q should quote the input %s", exportErr.Error(), want)
			}
			if !strings.Contains(exportErr.Error(), "YYYY-MM-DD") {
				t.Errorf("error %q should name the expected format", exportErr.Error())
			}
		})
	}
}

func TestResolveRange(t *testing.T) {
	now := time.Date(2024, 3, 20, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		start, end string
		window     time.Duration
		want       Range
	}{
		{
			name: "defaults",
			want: Range{Start: now.Add(-7 * 24 * time.Hour), End: now},
		},
		{
			name:  "explicit start",
			start: "2024-03-01",
			want:  Range{Start: ptr.Date(2024, time.March, 1), End: now},
		},
		{
			name: "explicit end",
			end:  "2024-03-10",
			want: Range{Start: now.Add(-DefaultWindow), End: ptr.Date(2024, time.March, 10)},
		},
		{
			name:  "inverted range is accepted",
			start: "2024-03-10",
			end:   "2024-03-01",
			want:  Range{Start: ptr.Date(2024, time.March, 10), End: ptr.Date(2024, time.March, 1)},
		},
		{
			name:   "custom window",
			window: 30 * 24 * time.Hour,
			want:   Range{Start: now.Add(-30 * 24 * time.Hour), End: now},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRange(tt.start, tt.end, now, tt.window)
			if err != nil {
				t.Fatalf("ResolveRange: %v", err)
			}
			if !got.Start.Equal(tt.want.Start) || !got.End.Equal(tt.want.End) {
				t.Errorf("ResolveRange = %v..%v, want %v..%v", got.Start, got.End, tt.want.Start, tt.want.End)
			}
		})
	}
}

func TestResolveRange_DefaultsAreOrdered(t *testing.T) {
	got, err := ResolveRange("", "", time.Now(), 0)
	if err != nil {
		t.Fatalf("ResolveRange: %v", err)
	}
	if got.Start.After(got.End) {
		t.Errorf("default start %v after end %v", got.Start, got.End)
	}
	if got.StartNanos() > got.EndNanos() {
		t.Errorf("default start nanos %d > end nanos %d", got.StartNanos(), got.EndNanos())
	}
}

func TestResolveRange_BadInputIsFatal(t *testing.T) {
	for _, tc := range []struct{ start, end string }{
		{"15-03-2024", ""},
		{"", "15-03-2024"},
		{"2024-03-01", "nope"},
	} {
		_, err := ResolveRange(tc.start, tc.end, time.Now(), 0)
		var exportErr *Error
		if !errors.As(err, &exportErr) || exportErr.Kind != KindArgument {
			t.Errorf("ResolveRange(%q, %q) err = %v, want KindArgument", tc.start, tc.end, err)
		}
	}
}

func TestEpochNanos(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want int64
	}{
		{"epoch", chatdb.Epoch, 0},
		{"one second after", chatdb.Epoch.Add(time.Second), int64(time.Second)},
		{"before epoch", chatdb.Epoch.Add(-time.Minute), -int64(time.Minute)},
		{"2024-03-15", ptr.Date(2024, time.March, 15), 732153600 * int64(time.Second)},
		{"overflow high", ptr.Date(2400, time.January, 1), 0},
		{"overflow low", ptr.Date(1600, time.January, 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EpochNanos(tt.in); got != tt.want {
				t.Errorf("EpochNanos(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
