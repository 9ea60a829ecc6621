// Package value provides the constrained value model that crosses activity
// boundaries: everything a pipeline records to its durable history is built
// from these types.
//
// This package contains serialization and hashing only. All other internal
// packages import value; value imports nothing internal. This keeps it the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - use Int (int64) for numbers
//   - Canonical serialization follows RFC 8785 (sorted keys, NFC, no HTML escaping)
//   - Content-addressed hashes are SHA-256 with domain separation
package value
