// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	pbkdf2KeyLength  = 64
	saltLength       = 16
)

// dummySalt is used for constant-time login when the user does not exist.
const dummySalt = "00000000000000000000000000000000"

// HashPassword derives a hash from password with a fresh random salt.
// Both values are hex encoded.
func HashPassword(password string) (salt, hash string, err error) {
	b := make([]byte, saltLength)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt = hex.EncodeToString(b)
	return salt, derive(password, salt), nil
}

// CheckPassword reports whether password matches the stored salt and hash.
func CheckPassword(password, salt, hash string) bool {
	computed := derive(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// The hex salt string itself is the PBKDF2 salt.
func derive(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLength, sha512.New)
	return hex.EncodeToString(key)
}
