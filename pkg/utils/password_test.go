package utils

import "testing"

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hashing failed: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the plaintext")
	}

	if !CheckPassword("correct horse", hash) {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword("wrong horse", hash) {
		t.Fatal("expected different password to fail")
	}
	if CheckPassword("correct horse", "not-a-bcrypt-hash") {
		t.Fatal("expected garbage hash to fail")
	}
}
