package flatpress

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestCheckPasswordPlaintext(t *testing.T) {
	if !checkPassword("secret", "secret") {
		t.Error("matching plaintext password rejected")
	}
	if checkPassword("wrong", "secret") {
		t.Error("wrong plaintext password accepted")
	}
	if checkPassword("", "secret") {
		t.Error("empty password accepted")
	}
}

func TestCheckPasswordBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !checkPassword("secret", string(hash)) {
		t.Error("matching bcrypt password rejected")
	}
	if checkPassword("wrong", string(hash)) {
		t.Error("wrong bcrypt password accepted")
	}
	// A bcrypt hash as the attempt must not match itself.
	if checkPassword(string(hash), string(hash)) {
		t.Error("hash-as-password accepted")
	}
}
