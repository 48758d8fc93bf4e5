package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, enough to tell trials apart in logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// ParameterHash fingerprints a parameter snapshot
type ParameterHash Hash

func (h ParameterHash) String() string { return Hash(h).String() }

// Short returns the abbreviated fingerprint used in log lines
func (h ParameterHash) Short() string { return Hash(h).Short() }

// ComputeParameterHash hashes a name -> value snapshot independently of map order
func ComputeParameterHash(values map[string]string) ParameterHash {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteByte('=')
		data.WriteString(values[key])
		data.WriteByte('\n')
	}

	return ParameterHash(NewHash([]byte(data.String())))
}
