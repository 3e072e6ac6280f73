package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"

	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// keeperSchemes are the secrets URL schemes linked into the binary. base64key is the local
// keeper and is only meant for tests and development.
var keeperSchemes = []string{"awskms", "azurekeyvault", "base64key", "gcpkms", "hashivault"}

type kmsService struct {
	urls *secrets.URLMux
}

// NewKMSService returns a KMSService that opens gocloud.dev keepers from the default URL mux.
func NewKMSService() KMSService {
	return &kmsService{urls: secrets.DefaultURLMux()}
}

// OpenKeeper opens the keeper behind keyURI. Unknown schemes are rejected before the mux is
// consulted so the error names what is supported.
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	parsed, err := url.Parse(keyURI)
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("failed to open KMS keeper: malformed key URI")
	}
	if !slices.Contains(keeperSchemes, parsed.Scheme) {
		return nil, fmt.Errorf(
			"failed to open KMS keeper: unsupported scheme %q (supported: %s)",
			parsed.Scheme, strings.Join(keeperSchemes, ", "),
		)
	}

	keeper, err := k.urls.OpenKeeperURL(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}
