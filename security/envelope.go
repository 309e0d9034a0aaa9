package security

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	envelopePrefix    = "accounts.token.v1:"
	envelopeAlgorithm = "aes-256-gcm"
)

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// IsSealed reports whether value carries the token envelope prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, envelopePrefix)
}

func encodeEnvelope(env envelope, nonce []byte, sealed []byte) (string, error) {
	env.Algorithm = envelopeAlgorithm
	env.Nonce = base64.StdEncoding.EncodeToString(nonce)
	env.Ciphertext = base64.StdEncoding.EncodeToString(sealed)
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("security: encode envelope: %w", err)
	}
	return envelopePrefix + string(data), nil
}

func decodeEnvelope(value string) (envelope, []byte, []byte, error) {
	if !IsSealed(value) {
		return envelope{}, nil, nil, fmt.Errorf("security: invalid token envelope prefix")
	}
	var parsed envelope
	if err := json.Unmarshal([]byte(strings.TrimPrefix(value, envelopePrefix)), &parsed); err != nil {
		return envelope{}, nil, nil, fmt.Errorf("security: decode envelope: %w", err)
	}
	if alg := strings.ToLower(strings.TrimSpace(parsed.Algorithm)); alg != "" && alg != envelopeAlgorithm {
		return envelope{}, nil, nil, fmt.Errorf("security: unsupported envelope algorithm %q", parsed.Algorithm)
	}
	nonce, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	if err != nil {
		return envelope{}, nil, nil, fmt.Errorf("security: decode nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return envelope{}, nil, nil, fmt.Errorf("security: decode ciphertext payload: %w", err)
	}
	return parsed, nonce, sealed, nil
}
