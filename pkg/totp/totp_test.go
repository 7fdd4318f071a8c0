package totp

import (
	"strings"
	"testing"
	"time"
)

// base32 encoding of the RFC 6238 appendix B ASCII seed "12345678901234567890"
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestCodeRFCVectors(t *testing.T) {
	tests := []struct {
		name string
		unix int64
		want string
	}{
		{"First step", 59, "287082"},
		{"Step boundary minus one", 1111111109, "081804"},
		{"Mid range", 1234567890, "005924"},
		{"Year 2033", 2000000000, "279037"},
		{"Year 2603", 20000000000, "353130"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Code(rfcSecret, time.Unix(tt.unix, 0), DefaultDigits, DefaultPeriod)
			if err != nil {
				t.Fatalf("Code returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected code %s at t=%d, got %s", tt.want, tt.unix, got)
			}
		})
	}
}

func TestVerifySkewWindow(t *testing.T) {
	now := time.Unix(1234567890, 0)

	current, err := Code(rfcSecret, now, DefaultDigits, DefaultPeriod)
	if err != nil {
		t.Fatalf("Code returned error: %v", err)
	}
	previous, _ := Code(rfcSecret, now.Add(-30*time.Second), DefaultDigits, DefaultPeriod)
	next, _ := Code(rfcSecret, now.Add(30*time.Second), DefaultDigits, DefaultPeriod)
	outside, _ := Code(rfcSecret, now.Add(-60*time.Second), DefaultDigits, DefaultPeriod)

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"Current step accepted", current, true},
		{"Previous step accepted", previous, true},
		{"Next step accepted", next, true},
		{"Two steps back rejected", outside, false},
		{"Garbage rejected", "000000", false},
		{"Wrong length rejected", "28708", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(rfcSecret, tt.code, now, DefaultDigits, DefaultPeriod, 1); got != tt.want {
				t.Errorf("Verify(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestVerifyZeroSkew(t *testing.T) {
	now := time.Unix(1234567890, 0)
	previous, _ := Code(rfcSecret, now.Add(-30*time.Second), DefaultDigits, DefaultPeriod)

	if Verify(rfcSecret, previous, now, DefaultDigits, DefaultPeriod, 0) {
		t.Error("Expected previous-step code to be rejected with skew=0")
	}
}

func TestGenerateSecret(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		secret, err := GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret returned error: %v", err)
		}
		if len(secret) != 32 {
			t.Errorf("Expected 32-char base32 secret, got %d chars", len(secret))
		}
		if seen[secret] {
			t.Error("Duplicate secret generated")
		}
		seen[secret] = true

		// Round trip: a generated secret must produce verifiable codes
		now := time.Now()
		code, err := Code(secret, now, DefaultDigits, DefaultPeriod)
		if err != nil {
			t.Fatalf("Code returned error for generated secret: %v", err)
		}
		if !Verify(secret, code, now, DefaultDigits, DefaultPeriod, 1) {
			t.Error("Generated secret failed to verify its own code")
		}
	}
}

func TestProvisioningURI(t *testing.T) {
	uri := ProvisioningURI("KarmaSystem", "user@example.com", rfcSecret, 6, 30)

	if !strings.HasPrefix(uri, "otpauth://totp/KarmaSystem:user%40example.com?") {
		t.Errorf("Unexpected URI label: %s", uri)
	}
	for _, want := range []string{"secret=" + rfcSecret, "issuer=KarmaSystem", "digits=6", "period=30", "algorithm=SHA1"} {
		if !strings.Contains(uri, want) {
			t.Errorf("URI missing %q: %s", want, uri)
		}
	}

	spaced := ProvisioningURI("Karma System", "first last@example.com", rfcSecret, 6, 30)
	if !strings.HasPrefix(spaced, "otpauth://totp/Karma%20System:first%20last%40example.com?") {
		t.Errorf("Unexpected URI label with spaces: %s", spaced)
	}
}
