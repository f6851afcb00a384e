package otp

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"555552022", "966555552022"},
		{"0555552022", "966555552022"},
		{"966555552022", "966555552022"},
		{"9660555552022", "966555552022"},
		{" 055 555 2022 ", "966555552022"},
	}
	for _, c := range cases {
		got, err := NormalizePhone(c.in)
		if err != nil {
			t.Errorf("NormalizePhone(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePhone_invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "12345", "4555552022", "96655555202299", "+966555552022"} {
		if _, err := NormalizePhone(in); !errors.Is(err, ErrInvalidPhoneNumber) {
			t.Errorf("NormalizePhone(%q): got %v, want ErrInvalidPhoneNumber", in, err)
		}
	}
}

func TestNormalizePhone_idempotent(t *testing.T) {
	first, err := NormalizePhone("0555552022")
	if err != nil {
		t.Fatal(err)
	}
	second, err := NormalizePhone(first)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("normalization must be idempotent: %q != %q", first, second)
	}
}

func TestLocalPhone(t *testing.T) {
	if got := LocalPhone("966555552022"); got != "555552022" {
		t.Errorf("LocalPhone = %q, want 555552022", got)
	}
}

func TestMaskPhone(t *testing.T) {
	if got := MaskPhone("966555552022"); got != "96********22" {
		t.Errorf("MaskPhone = %q", got)
	}
	if got := MaskPhone("123"); got != "****" {
		t.Errorf("short numbers should be fully masked, got %q", got)
	}
}
