package vpncfg

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Hash is the 128-bit semantic fingerprint of a config.
type Hash [16]byte

// String returns the lowercase hex encoding.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// SemanticHash fingerprints a config line over its operational identity:
// protocol, lowercased host, port, and sorted canonical params. Tags,
// remarks, and URI fragments never contribute, so cosmetically different
// copies of the same endpoint collapse to one hash.
func SemanticHash(line string) (Hash, error) {
	parsed, err := Parse(line)
	if err != nil {
		return Hash{}, err
	}
	return parsed.SemanticHash(), nil
}

// SemanticHash computes the fingerprint of an already parsed config.
func (p *Parsed) SemanticHash() Hash {
	keys := make([]string, 0, len(p.Params))
	for key := range p.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(p.Protocol))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(p.Host))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(p.Port))
	for _, key := range keys {
		b.WriteByte('|')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(p.Params[key])
	}

	sum := sha256.Sum256([]byte(b.String()))
	var h Hash
	copy(h[:], sum[:16])
	return h
}
