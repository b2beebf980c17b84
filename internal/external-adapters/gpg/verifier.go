// Package gpg provides GPG signature verification capabilities.
package gpg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// Size limits for downloaded key material and signatures
const (
	maxKeyringSize   = 10 * 1024 * 1024
	maxSignatureSize = 10 * 1024
)

const armorHeader = "-----BEGIN PGP SIGNATURE---"

// Verifier implements GPG signature verification using ProtonMail's go-crypto
// A maintained, modern fork of golang.org/x/crypto/openpgp
// This is in external-adapters to isolate the external dependency
type Verifier struct {
	keyring    openpgp.EntityList
	httpClient *http.Client
}

// NewVerifier creates a new GPG verifier
func NewVerifier() *Verifier {
	return &Verifier{
		keyring: make(openpgp.EntityList, 0),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ImportKeyBytes imports public keys from raw key material, armored or binary
func (v *Verifier) ImportKeyBytes(data []byte) error {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read key material: %w", err)
		}
	}

	if len(entities) == 0 {
		return fmt.Errorf("no keys found in key material")
	}

	v.keyring = append(v.keyring, entities...)
	return nil
}

// ImportKeyFromFile imports public keys from a file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath comes from the project security configuration
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to read key file: %w", err)
	}

	if err := v.ImportKeyBytes(data); err != nil {
		return fmt.Errorf("key file %s: %w", keyPath, err)
	}
	return nil
}

// DownloadKeyring downloads key material from a URL, imports it, and returns
// the raw bytes so callers can pin them on disk for later runs
func (v *Verifier) DownloadKeyring(ctx context.Context, keysURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", keysURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download keys from %s: %w", keysURL, err)
	}
	//nolint:errcheck // Defer close
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key download from %s failed with status %d", keysURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxKeyringSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key material: %w", err)
	}

	if err := v.ImportKeyBytes(data); err != nil {
		return nil, fmt.Errorf("keys from %s: %w", keysURL, err)
	}

	return data, nil
}

// VerifyDetachedFile verifies a detached signature file over a data file
func (v *Verifier) VerifyDetachedFile(dataPath, sigPath string) error {
	if len(v.keyring) == 0 {
		return fmt.Errorf("no GPG keys imported, import keys first")
	}

	//nolint:gosec // G304: sigPath is derived from the workdir layout
	sigData, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("failed to read signature file: %w", err)
	}
	if len(sigData) < 10 || len(sigData) > maxSignatureSize {
		return fmt.Errorf("signature file %s has implausible size %d", sigPath, len(sigData))
	}

	//nolint:gosec // G304: dataPath is derived from the workdir layout
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer dataFile.Close()

	return v.checkDetached(dataFile, sigData)
}

// VerifyDetached verifies a detached signature over in-memory data
func (v *Verifier) VerifyDetached(data, sigData []byte) error {
	if len(v.keyring) == 0 {
		return fmt.Errorf("no GPG keys imported, import keys first")
	}

	return v.checkDetached(bytes.NewReader(data), sigData)
}

func (v *Verifier) checkDetached(data io.Reader, sigData []byte) error {
	// Armored signatures start with the PGP armor header
	isArmored := len(sigData) > len(armorHeader) && string(sigData[:len(armorHeader)]) == armorHeader

	var verifyErr error
	if isArmored {
		_, verifyErr = openpgp.CheckArmoredDetachedSignature(v.keyring, data, bytes.NewReader(sigData), nil)
	} else {
		_, verifyErr = openpgp.CheckDetachedSignature(v.keyring, data, bytes.NewReader(sigData), nil)
	}

	if verifyErr != nil {
		return fmt.Errorf("signature verification failed: %w", verifyErr)
	}

	return nil
}

// KeyringSize returns the number of keys in the keyring
func (v *Verifier) KeyringSize() int {
	return len(v.keyring)
}
