package domain

import (
	"github.com/allisson/pseudonymizer/internal/errors"
)

// Key hierarchy errors.
var (
	// ErrUnsupportedAlgorithm indicates the requested algorithm is neither AESGCM nor ChaCha20.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates authentication failed while opening a ciphertext. The
	// cause (wrong key, tampering, wrong AAD) is deliberately not distinguished.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	ErrMasterKeysNotSet         = errors.New("MASTER_KEYS is not set")
	ErrActiveMasterKeyIDNotSet  = errors.New("ACTIVE_MASTER_KEY_ID is not set")
	ErrInvalidMasterKeysFormat  = errors.New("invalid MASTER_KEYS format")
	ErrInvalidMasterKeyBase64   = errors.New("invalid master key base64")
	ErrActiveMasterKeyNotFound  = errors.New("active master key not found")
	ErrMasterKeyNotFound        = errors.Wrap(errors.ErrNotFound, "master key not found")
	ErrKekNotFound              = errors.Wrap(errors.ErrNotFound, "kek not found")
	ErrKekAlreadyExists         = errors.Wrap(errors.ErrConflict, "a kek already exists, rotate instead")
	ErrDekNotFound              = errors.Wrap(errors.ErrNotFound, "dek not found")
	ErrEncryptionKeyNotFound    = errors.Wrap(errors.ErrNotFound, "encryption key not found")
	ErrEncryptionKeyExists      = errors.Wrap(errors.ErrConflict, "encryption key already exists")
	ErrCannotDestroyActiveKey   = errors.Wrap(errors.ErrInvalidInput, "the active encryption key version cannot be destroyed")
	ErrEncryptionKeyIsDestroyed = errors.Wrap(errors.ErrInvalidInput, "encryption key version already destroyed")

	// ErrCiphertextCorrupted indicates a stored ciphertext failed authentication under its
	// recorded key version.
	ErrCiphertextCorrupted = errors.New("ciphertext failed authentication")

	// ErrCryptoUnavailable indicates the key backend cannot serve the call: the KMS is down,
	// key material is missing from the chain, or the call exceeded its deadline. Callers
	// must fail closed.
	ErrCryptoUnavailable = errors.Wrap(errors.ErrUnavailable, "encryption backend unavailable")

	// ErrKeyVersionUnavailable indicates the key version a ciphertext was sealed with has been
	// destroyed or never existed.
	ErrKeyVersionUnavailable = errors.Wrap(errors.ErrGone, "encryption key version unavailable")
)
