package token

import "testing"

func TestGenerateRandomToken_Unique(t *testing.T) {
	a, err := GenerateRandomToken(32)
	if err != nil {
		t.Fatalf("GenerateRandomToken: %v", err)
	}
	b, err := GenerateRandomToken(32)
	if err != nil {
		t.Fatalf("GenerateRandomToken: %v", err)
	}
	if a == b {
		t.Fatal("two generated tokens should not collide")
	}
	if a == "" {
		t.Fatal("token should not be empty")
	}
}

func TestHashSHA256_Deterministic(t *testing.T) {
	if HashSHA256("abc") != HashSHA256("abc") {
		t.Fatal("hash should be deterministic")
	}
	if HashSHA256("abc") == HashSHA256("abd") {
		t.Fatal("different inputs should hash differently")
	}
	if len(HashSHA256("abc")) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(HashSHA256("abc")))
	}
}
