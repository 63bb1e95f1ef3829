package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint is the deterministic identity of one model request: a hex
// SHA-256 over the model identifier, the fully rendered prompt, and the
// sampling parameters. Equal requests always map to equal fingerprints.
type Fingerprint string

// NewFingerprint computes the fingerprint for a request. params must be a
// JSON-serializable value; field order is fixed by the canonical payload
// struct so the hash is stable across processes.
func NewFingerprint(model, prompt string, params any) Fingerprint {
	payload := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		Params any    `json:"params"`
	}{Model: model, Prompt: prompt, Params: params}

	data, err := json.Marshal(payload)
	if err != nil {
		// Deterministic fallback for non-serializable params.
		data = []byte(fmt.Sprintf("%s\x00%s\x00%v", model, prompt, params))
	}
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}
