package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/simrelay/simrelay/internal/infrastructure/config"
)

// symmetricKeyBytes is the length of generated device access keys.
const symmetricKeyBytes = 32

// Issuer is the relay's view of the external device-identity platform.
//
// Create registers a device and provisions its credentials; Delete revokes
// them; ConnectionString renders the string a device uses to reach the
// platform. The platform itself is outside the core: production deployments
// plug in a real client, the simulator uses HubIssuer.
type Issuer interface {
	Create(ctx context.Context, deviceID string) error
	Delete(ctx context.Context, deviceID string) error
	ConnectionString(deviceID string) string
}

// HubIssuer is a local Issuer that generates symmetric keys in-process.
//
// Each created device gets a random base64 access key, remembered for the
// life of the process. ConnectionString falls back to the configured shared
// access key for devices this process did not create (e.g. after restart).
type HubIssuer struct {
	cfg  config.ProvisioningConfig
	keys map[string]string
	mu   sync.RWMutex
}

// NewHubIssuer creates a HubIssuer from the provisioning configuration.
func NewHubIssuer(cfg config.ProvisioningConfig) *HubIssuer {
	return &HubIssuer{
		cfg:  cfg,
		keys: make(map[string]string),
	}
}

// Create provisions a fresh symmetric key for deviceID.
func (h *HubIssuer) Create(_ context.Context, deviceID string) error {
	key, err := generateSymmetricKey()
	if err != nil {
		return fmt.Errorf("%w: generating key for %s: %w", ErrCredentialIssuance, deviceID, err)
	}

	h.mu.Lock()
	h.keys[deviceID] = key
	h.mu.Unlock()
	return nil
}

// Delete revokes the device's key.
func (h *HubIssuer) Delete(_ context.Context, deviceID string) error {
	h.mu.Lock()
	delete(h.keys, deviceID)
	h.mu.Unlock()
	return nil
}

// ConnectionString renders the platform connection string for deviceID:
//
//	HostName=<host>;DeviceId=<id>;SharedAccessKey=<key>
func (h *HubIssuer) ConnectionString(deviceID string) string {
	h.mu.RLock()
	key, ok := h.keys[deviceID]
	h.mu.RUnlock()
	if !ok {
		key = h.cfg.HubSharedAccessKey
	}

	return fmt.Sprintf("HostName=%s;DeviceId=%s;SharedAccessKey=%s",
		h.cfg.HubHostName, deviceID, key)
}

// generateSymmetricKey returns a random URL-safe base64 key without padding.
func generateSymmetricKey() (string, error) {
	b := make([]byte, symmetricKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
