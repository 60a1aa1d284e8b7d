package api

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateInviteCode()
		if err != nil {
			t.Fatalf("GenerateInviteCode() error = %v", err)
		}
		if len(code) != 12 || code[4] != '-' || code[9] != '-' {
			t.Fatalf("code %q is not XXXX-XXXX-XX", code)
		}
		if !IsValidCodeFormat(code) {
			t.Fatalf("generated code %q fails format check", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct codes out of 50", len(seen))
	}
}

func TestHashAndVerifyCode(t *testing.T) {
	hash, err := HashCode("ABCD-EFGH-JK")
	if err != nil {
		t.Fatalf("HashCode() error = %v", err)
	}

	for _, input := range []string{"ABCD-EFGH-JK", "abcd efgh jk", "ABCDEFGHJK"} {
		if !VerifyCode(input, hash) {
			t.Errorf("VerifyCode(%q) = false, want true", input)
		}
	}
	if VerifyCode("ABCD-EFGH-JM", hash) {
		t.Error("VerifyCode() accepted a different code")
	}
}

func TestIsValidCodeFormat(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABCD-EFGH-JK", true},
		{"abcd-efgh-jk", true},
		{"ABCD-EFGH-J", false},
		{"ABCD-EFGH-JKM", false},
		{"ABCD-EFGH-J0", false},
		{"ABCD-EFGH-JI", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidCodeFormat(tt.code); got != tt.want {
			t.Errorf("IsValidCodeFormat(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestCodePrefixAndFormat(t *testing.T) {
	if got := GetCodePrefix("abcd-efgh-jk"); got != "ABCD" {
		t.Errorf("GetCodePrefix() = %q", got)
	}
	if got := GetCodePrefix("ab"); got != "AB" {
		t.Errorf("GetCodePrefix() = %q", got)
	}
	if got := FormatCode("abcdefghjk"); got != "ABCD-EFGH-JK" {
		t.Errorf("FormatCode() = %q", got)
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "expired"},
		{-time.Minute, "expired"},
		{45 * time.Minute, "45m"},
		{23*time.Hour + 45*time.Minute, "23h 45m"},
		{48 * time.Hour, "48h 0m"},
	}
	for _, tt := range tests {
		if got := formatRemaining(tt.d); got != tt.want {
			t.Errorf("formatRemaining(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
	if got := FormatExpiresIn(time.Now().Add(CodeExpiration)); !strings.HasPrefix(got, "47h") && !strings.HasPrefix(got, "48h") {
		t.Errorf("FormatExpiresIn() = %q", got)
	}
}
