package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix enables future algorithm migration.
const (
	DomainStepInput = "julee/step-input/v1"
	DomainExecution = "julee/execution/v1"
	DomainEntity    = "julee/entity/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents domain/data
// boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content-addressed hash of an object under a domain.
// The same object always produces the same hash: canonical JSON guarantees
// byte-identical serialization across processes and replays.
func Hash(domain string, obj Object) (string, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("hash: marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// InputHash computes the hash of a step input. Replay compares this against
// the recorded hash to detect a pipeline body that diverged from history.
func InputHash(input Object) (string, error) {
	return Hash(DomainStepInput, input)
}

// MustHash is like Hash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHash(domain string, obj Object) string {
	h, err := Hash(domain, obj)
	if err != nil {
		panic(err)
	}
	return h
}
