package auth

import "golang.org/x/crypto/bcrypt"

// HashAPIKey hashes a tenant admin API key with the configured cost.
func HashAPIKey(key string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareAPIKey verifies an API key against its stored hash.
func CompareAPIKey(hashed, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(key))
}
