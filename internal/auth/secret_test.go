package auth

import "testing"

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := HashSecret("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	ok, err := VerifySecret(hash, "correct horse battery staple")
	if err != nil {
		t.Fatalf("verify secret: %v", err)
	}
	if !ok {
		t.Fatalf("expected secret verification to pass")
	}
	ok, err = VerifySecret(hash, "bad secret")
	if err != nil {
		t.Fatalf("verify bad secret returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected wrong secret to fail")
	}
	if _, err := HashSecret("short"); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
	if _, err := VerifySecret("plain", "x"); err == nil {
		t.Fatalf("expected malformed hash to error")
	}
}

func TestParseTokenHeader(t *testing.T) {
	tests := []struct {
		in         string
		wantKey    string
		wantSecret string
		wantOK     bool
	}{
		{in: "token abc:def", wantKey: "abc", wantSecret: "def", wantOK: true},
		{in: "Token abc:def:ghi", wantKey: "abc", wantSecret: "def:ghi", wantOK: true},
		{in: TokenHeader("k", "s"), wantKey: "k", wantSecret: "s", wantOK: true},
		{in: "Bearer abc:def"},
		{in: "token abc"},
		{in: "token :def"},
		{in: ""},
	}
	for _, tt := range tests {
		key, secret, ok := ParseTokenHeader(tt.in)
		if key != tt.wantKey || secret != tt.wantSecret || ok != tt.wantOK {
			t.Fatalf("ParseTokenHeader(%q) = %q, %q, %v, want %q, %q, %v", tt.in, key, secret, ok, tt.wantKey, tt.wantSecret, tt.wantOK)
		}
	}
}

func TestNewAPIKey(t *testing.T) {
	k1, s1, err := NewAPIKey()
	if err != nil {
		t.Fatalf("NewAPIKey: %v", err)
	}
	k2, s2, _ := NewAPIKey()
	if len(k1) != 16 || len(s1) != 32 {
		t.Fatalf("unexpected lengths %d/%d", len(k1), len(s1))
	}
	if k1 == k2 || s1 == s2 {
		t.Fatalf("expected distinct credentials")
	}
}
