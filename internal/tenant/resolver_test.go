package tenant

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"tenant folder with file", "00000001/vertrag.pdf", "00000001", false},
		{"nested path", "12345678/2024/lohn/abrechnung_01.pdf", "12345678", false},
		{"leading slash", "/00000042/scan.tiff", "00000042", false},
		{"bare tenant folder", "00000007", "00000007", false},
		{"too short", "1234567/x.pdf", "", true},
		{"too long", "123456789/x.pdf", "", true},
		{"non-numeric", "personal1/x.pdf", "", true},
		{"empty", "", "", true},
		{"file at root", "loose_scan.pdf", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.path)
			if tc.wantErr {
				if !errors.Is(err, ErrUnresolved) {
					t.Fatalf("Resolve(%q) err = %v, want ErrUnresolved", tc.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tc.path, err)
			}
			if got != tc.want {
				t.Errorf("Resolve(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}

func TestValidCode(t *testing.T) {
	if !ValidCode("00000001") {
		t.Error("00000001 should be valid")
	}
	for _, bad := range []string{"0000001", "000000001", "0000000a", "0000 001", ""} {
		if ValidCode(bad) {
			t.Errorf("%q should be invalid", bad)
		}
	}
}
