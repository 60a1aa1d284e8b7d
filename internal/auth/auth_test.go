package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestValidateToken(t *testing.T) {
	a := New([]byte("test-key"))
	other := New([]byte("other-key"))

	valid, err := a.Sign("fa497802-ba40-4447-bc48-6da2bf726926", time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	expired, _ := a.Sign("u1", -time.Minute)
	wrongKey, _ := other.Sign("u1", time.Hour)
	noUser, _ := a.Sign("", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", valid, nil},
		{"expired", expired, ErrExpiredToken},
		{"wrong key", wrongKey, ErrInvalidToken},
		{"missing user", noUser, ErrMalformed},
		{"unsigned", none, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := a.ValidateToken(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateToken() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && info.UserID != "fa497802-ba40-4447-bc48-6da2bf726926" {
				t.Errorf("UserID = %q", info.UserID)
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		url        string
		allowQuery bool
		want       string
		wantErr    error
	}{
		{"bearer header", "Bearer abc", "/api/family", false, "abc", nil},
		{"lowercase scheme", "bearer abc", "/api/family", false, "abc", nil},
		{"basic header", "Basic abc", "/api/family", false, "", ErrMalformed},
		{"empty bearer", "Bearer ", "/api/family", false, "", ErrMalformed},
		{"missing", "", "/api/family", false, "", ErrMissingToken},
		{"query not allowed", "", "/api/ws?access_token=abc", false, "", ErrMissingToken},
		{"query allowed", "", "/api/ws?access_token=abc", true, "abc", nil},
		{"header wins", "Bearer h", "/api/ws?access_token=q", true, "h", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := TokenFromRequest(r, tt.allowQuery)
			if !errors.Is(err, tt.wantErr) || got != tt.want {
				t.Errorf("TokenFromRequest() = %q, %v; want %q, %v", got, err, tt.want, tt.wantErr)
			}
		})
	}
}
