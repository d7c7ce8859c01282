package services

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// ComputeHash produces the canonical fingerprint of a request used for
// idempotency conflict detection. JSON marshaling keeps the hash stable across
// struct reordering, unlike printf-style formatting.
func ComputeHash(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf("%+v", v))
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}
