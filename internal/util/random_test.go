package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(16)
	if len(hex) != 16 {
		t.Errorf("expected 16 characters, got %d", len(hex))
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("unexpected character %q in hex string", c)
		}
	}

	if GenerateRandomHex(0) != "" {
		t.Error("zero length should produce empty string")
	}
	if GenerateRandomHex(-3) != "" {
		t.Error("negative length should produce empty string")
	}
}

func TestGenerateRunID(t *testing.T) {
	id := GenerateRunID()
	if !strings.HasPrefix(id, "run_") {
		t.Errorf("run id should start with run_, got %s", id)
	}
	if len(id) != len("run_")+12 {
		t.Errorf("unexpected run id length: %s", id)
	}

	// IDs should not collide in practice
	if GenerateRunID() == GenerateRunID() {
		t.Error("two generated run ids should differ")
	}
}
