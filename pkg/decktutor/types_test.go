package decktutor

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestSignature(t *testing.T) {
	// md5("1:secret")
	if got := Signature(1, "secret"); got != "7272f097d55e24f93fa1f20ed60d47ac" {
		t.Errorf("Unexpected signature %s", got)
	}
	if Signature(1, "secret") == Signature(2, "secret") {
		t.Error("Signature must depend on the sequence")
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	s := &Session{Token: "t"}
	if s.Expired(now) {
		t.Error("Session without expiration should not expire")
	}

	s.Expiration = now.Add(time.Minute)
	if s.Expired(now) {
		t.Error("Session should still be valid")
	}

	s.Expiration = now
	if !s.Expired(now) {
		t.Error("Session should be expired at its expiration")
	}
}

func TestOrder(t *testing.T) {
	tests := []struct {
		in       string
		expected Order
		wire     string
	}{
		{"", Order{}, ""},
		{"name", Order{Column: "name"}, "name,asc"},
		{"name,asc", Order{Column: "name"}, "name,asc"},
		{" price , DESC ", Order{Column: "price", Descending: true}, "price,desc"},
	}

	for _, tt := range tests {
		got, err := ParseOrder(tt.in)
		if err != nil {
			t.Errorf("ParseOrder(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseOrder(%q) = %+v, expected %+v", tt.in, got, tt.expected)
		}
		if got.String() != tt.wire {
			t.Errorf("ParseOrder(%q).String() = %q, expected %q", tt.in, got.String(), tt.wire)
		}
	}

	for _, bad := range []string{",asc", "name,sideways"} {
		if _, err := ParseOrder(bad); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("ParseOrder(%q): expected ErrInvalidOrder, got %v", bad, err)
		}
	}
}

func TestCaptchaJSON(t *testing.T) {
	var c Captcha
	if err := json.Unmarshal([]byte(`["code","1 + 2"]`), &c); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.Code != "code" || c.Challenge != "1 + 2" {
		t.Errorf("Unexpected captcha %+v", c)
	}

	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(out) != `["code","1 + 2"]` {
		t.Errorf("Unexpected encoding %s", out)
	}

	if err := json.Unmarshal([]byte(`["only-one"]`), &c); err == nil {
		t.Error("Expected error for a one element captcha")
	}
}

func TestEnums(t *testing.T) {
	if len(Games) != 3 || !GameMagic.Valid() || GameMagic.Name() != "Magic the Gathering" {
		t.Error("Unexpected games table")
	}
	if Game("xyz").Valid() || Game("xyz").Name() != "xyz" {
		t.Error("Unknown game should be invalid and named by its code")
	}
	if len(CardStates) != 7 || !StatePoor.Valid() {
		t.Error("Unexpected card states table")
	}
	if len(CardLanguages) != 11 || CardLanguages[LanguageChineseTraditional] != "Chinese Traditional" {
		t.Error("Unexpected card languages table")
	}
}
