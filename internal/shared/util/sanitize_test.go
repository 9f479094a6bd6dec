package util

import (
	"errors"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "lease.pdf", want: "lease.pdf"},
		{in: "  Harbor Plaza Lease.pdf ", want: "Harbor Plaza Lease.pdf"},
		{in: "../../etc/passwd", want: "____etc_passwd"},
		{in: "a\\b/c.pdf", want: "a_b_c.pdf"},
		{in: "lease..v2.pdf", want: "lease_v2.pdf"},
		{in: "bad\x00name.pdf", want: "badname.pdf"},
		{in: "..", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidFileName) {
				t.Fatalf("SanitizeFileName(%q) expected ErrInvalidFileName, got %q, %v", tt.in, got, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SanitizeFileName(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeaderFileName(t *testing.T) {
	if got := HeaderFileName(`my "best" lease.pdf`); got != "my _best_ lease.pdf" {
		t.Fatalf("unexpected %q", got)
	}
	if got := HeaderFileName(" \r\n"); got != "document.pdf" {
		t.Fatalf("unexpected fallback %q", got)
	}
}
