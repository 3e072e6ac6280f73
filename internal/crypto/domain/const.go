package domain

// Algorithm identifies the AEAD cipher used to wrap a key. Both supported algorithms take
// 256-bit keys and 12-byte nonces and append a 16-byte authentication tag.
type Algorithm string

const (
	// AESGCM is AES-256-GCM, preferred on CPUs with AES-NI.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305, preferred where AES hardware acceleration is missing.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// KeySize is the size in bytes of every master key, KEK, DEK and session lookup key.
const KeySize = 32

// ParseAlgorithm maps a CLI or config value to an Algorithm.
func ParseAlgorithm(value string) (Algorithm, error) {
	switch Algorithm(value) {
	case AESGCM:
		return AESGCM, nil
	case ChaCha20:
		return ChaCha20, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
