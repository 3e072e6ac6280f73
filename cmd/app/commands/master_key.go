package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoService "github.com/allisson/pseudonymizer/internal/crypto/service"
)

const kmsRequiredHelp = `--kms-provider and --kms-key-uri are required

For local development, use:
  --kms-provider=localsecrets --kms-key-uri="base64key://<32-byte-base64-key>"

For production, use a cloud KMS:
  --kms-provider=gcpkms --kms-key-uri="gcpkms://projects/.../cryptoKeys/..."
  --kms-provider=awskms --kms-key-uri="awskms:///alias/..."
  --kms-provider=azurekeyvault --kms-key-uri="azurekeyvault://..."
  --kms-provider=hashivault --kms-key-uri="hashivault://..."`

// masterKeyEnv is the environment block printed by the master key commands.
type masterKeyEnv struct {
	header      string
	kmsProvider string
	kmsKeyURI   string
	masterKeys  string
	activeID    string
	footer      []string
}

func (e masterKeyEnv) write(w io.Writer) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n# Copy these variables into your .env file or secrets manager\n\n", e.header)
	fmt.Fprintf(&b, "KMS_PROVIDER=%q\n", e.kmsProvider)
	fmt.Fprintf(&b, "KMS_KEY_URI=%q\n", e.kmsKeyURI)
	fmt.Fprintf(&b, "MASTER_KEYS=%q\n", e.masterKeys)
	fmt.Fprintf(&b, "ACTIVE_MASTER_KEY_ID=%q\n", e.activeID)
	if len(e.footer) > 0 {
		b.WriteString("\n")
		for _, line := range e.footer {
			b.WriteString("# " + line + "\n")
		}
	}
	_, _ = io.WriteString(w, b.String())
}

// RunCreateMasterKey generates a master key, wraps it with the KMS key and prints the
// variables that load it. An empty keyID defaults to master-key-YYYY-MM-DD.
func RunCreateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID, kmsProvider, kmsKeyURI string,
) error {
	if kmsProvider == "" || kmsKeyURI == "" {
		return fmt.Errorf("%s", kmsRequiredHelp)
	}
	keyID = masterKeyIDOrDefault(keyID)

	wrapped, err := newWrappedMasterKey(ctx, kmsService, logger, kmsKeyURI)
	if err != nil {
		return err
	}
	logger.Info("master key created", slog.String("master_key_id", keyID), slog.String("kms_provider", kmsProvider))

	masterKeyEnv{
		header:      "Master Key Configuration (KMS Mode)",
		kmsProvider: kmsProvider,
		kmsKeyURI:   kmsKeyURI,
		masterKeys:  keyID + ":" + wrapped,
		activeID:    keyID,
	}.write(writer)
	return nil
}

// RunRotateMasterKey generates a new master key and prints MASTER_KEYS with it appended and
// active. The previous keys stay until rewrap-keks has moved every KEK over.
func RunRotateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID, kmsProvider, kmsKeyURI, existingMasterKeys, existingActiveKeyID string,
) error {
	switch {
	case kmsProvider == "" || kmsKeyURI == "":
		return fmt.Errorf("%s", kmsRequiredHelp)
	case existingMasterKeys == "":
		return fmt.Errorf("MASTER_KEYS is not set: nothing to rotate")
	case existingActiveKeyID == "":
		return fmt.Errorf("ACTIVE_MASTER_KEY_ID is not set")
	}

	keyID = masterKeyIDOrDefault(keyID)
	if keyID == existingActiveKeyID {
		return fmt.Errorf("new master key ID must differ from the active one: %s", keyID)
	}

	wrapped, err := newWrappedMasterKey(ctx, kmsService, logger, kmsKeyURI)
	if err != nil {
		return err
	}
	logger.Info("master key rotated",
		slog.String("previous_master_key_id", existingActiveKeyID),
		slog.String("master_key_id", keyID),
	)

	masterKeyEnv{
		header:      "Master Key Rotation (KMS Mode)",
		kmsProvider: kmsProvider,
		kmsKeyURI:   kmsKeyURI,
		masterKeys:  existingMasterKeys + "," + keyID + ":" + wrapped,
		activeID:    keyID,
		footer: []string{
			"Next steps:",
			"1. Deploy the variables above",
			"2. Re-wrap KEKs: app rewrap-keks",
			"3. Once done, keep only the new key: MASTER_KEYS=\"" + keyID + ":" + wrapped + "\"",
		},
	}.write(writer)
	return nil
}

func masterKeyIDOrDefault(keyID string) string {
	if keyID != "" {
		return keyID
	}
	return "master-key-" + time.Now().Format(time.DateOnly)
}

// newWrappedMasterKey generates a master key and returns its KMS ciphertext in base64. The
// plaintext is zeroed before returning.
func newWrappedMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	kmsKeyURI string,
) (string, error) {
	masterKey := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(masterKey); err != nil {
		return "", fmt.Errorf("failed to generate master key: %w", err)
	}
	defer cryptoDomain.Zero(masterKey)

	keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return "", fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if err := keeper.Close(); err != nil {
			logger.Warn("failed to close KMS keeper", slog.Any("error", err))
		}
	}()

	ciphertext, err := keeper.Encrypt(ctx, masterKey)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt master key with KMS: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
