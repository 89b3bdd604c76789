package action

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// refID derives a simulated reference id from the dispatch input. The id is
// a truncated SHA-256 of the canonical JSON encoding (encoding/json sorts
// map keys), so identical inputs produce identical ids across process runs.
func refID(prefix string, input map[string]any) string {
	b, err := json.Marshal(input)
	if err != nil {
		// Unmarshalable inputs cannot reach handlers through the API, but a
		// stable fallback keeps handlers total.
		b = []byte(prefix)
	}
	sum := sha256.Sum256(b)
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(sum[:5]))
}
