package password_test

import (
	"strings"
	"testing"

	"github.com/dropDatabas3/ssohub/internal/security/password"
)

func TestHashVerify(t *testing.T) {
	h, err := password.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(h, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", h)
	}
	if !password.Verify("correct horse battery staple", h) {
		t.Fatal("expected verify to succeed for the right password")
	}
	if password.Verify("wrong password", h) {
		t.Fatal("expected verify to fail for the wrong password")
	}
}

func TestVerifyGarbageHash(t *testing.T) {
	if password.Verify("anything", "not-a-hash") {
		t.Fatal("garbage hash must never verify")
	}
}
