package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
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

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	MatrixHash Hash
	DesignHash Hash
	ConfigHash Hash
)

func (h MatrixHash) String() string { return Hash(h).String() }
func (h DesignHash) String() string { return Hash(h).String() }
func (h ConfigHash) String() string { return Hash(h).String() }

// ComputeMatrixHash hashes gene identifiers, sample names and counts in
// row-major order so identical matrices always fingerprint identically.
func ComputeMatrixHash(genes []GeneID, samples []SampleName, counts [][]float64) MatrixHash {
	var data strings.Builder
	for _, g := range genes {
		data.WriteString(string(g))
		data.WriteByte('\n')
	}
	for _, s := range samples {
		data.WriteString(string(s))
		data.WriteByte('\n')
	}
	buf := make([]byte, 8)
	raw := []byte(data.String())
	for _, row := range counts {
		for _, v := range row {
			binary.BigEndian.PutUint64(buf, math.Float64bits(v))
			raw = append(raw, buf...)
		}
	}
	return MatrixHash(NewHash(raw))
}

// ComputeDesignHash hashes the sample-to-condition mapping plus the reference
// level, with samples sorted for map-order independence.
func ComputeDesignHash(conditions map[SampleName]Condition, reference Condition) DesignHash {
	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, k := range keys {
		data.WriteString(k)
		data.WriteByte('=')
		data.WriteString(string(conditions[SampleName(k)]))
		data.WriteByte('\n')
	}
	data.WriteString("reference=")
	data.WriteString(string(reference))
	return DesignHash(NewHash([]byte(data.String())))
}

// ComputeConfigHash hashes an option set rendered as sorted key=value pairs.
func ComputeConfigHash(options map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%v", options[key]))
	}
	return ConfigHash(NewHash([]byte(data.String())))
}
