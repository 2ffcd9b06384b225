package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/simrelay/simrelay/internal/infrastructure/logging"
)

// keyNumberWidth is the zero-padded width of identity sequence numbers.
const keyNumberWidth = 4

// Pool coordinates the identity repository and the credential issuer.
//
// All administrative operations (provision, release, delete) and the claim
// path used by the session handler go through the Pool.
type Pool struct {
	repo   Repository
	issuer Issuer
	prefix string
	logger *logging.Logger
}

// NewPool creates a Pool over the given repository and issuer.
func NewPool(repo Repository, issuer Issuer, prefix string, logger *logging.Logger) *Pool {
	return &Pool{
		repo:   repo,
		issuer: issuer,
		prefix: prefix,
		logger: logger,
	}
}

// Provision creates count new identities numbered 1..count.
//
// For each key it first requests credentials from the issuer, then records
// the key as unassigned. An issuance failure aborts the remaining batch
// (later keys depend on the sequential numbering) but identities already
// recorded are deliberately NOT rolled back; the returned slice holds every
// key that was durably recorded before the failure.
func (p *Pool) Provision(ctx context.Context, count int) ([]string, error) {
	var provisioned []string
	for i := 1; i <= count; i++ {
		deviceID := p.keyFor(i)

		if err := p.issuer.Create(ctx, deviceID); err != nil {
			p.logger.Error("credential issuance failed", "device_id", deviceID, "error", err)
			return provisioned, fmt.Errorf("%w: %s: %w", ErrCredentialIssuance, deviceID, err)
		}

		if err := p.repo.Insert(ctx, deviceID); err != nil {
			p.logger.Error("recording identity failed", "device_id", deviceID, "error", err)
			return provisioned, fmt.Errorf("recording identity %s: %w", deviceID, err)
		}

		provisioned = append(provisioned, deviceID)
		p.logger.Info("identity provisioned", "device_id", deviceID)
	}
	return provisioned, nil
}

// Claim binds the lowest unassigned identity to token and returns its key.
// Returns ErrPoolExhausted when no identity is free.
func (p *Pool) Claim(ctx context.Context, token string) (string, error) {
	deviceID, err := p.repo.Claim(ctx, token)
	if err != nil {
		return "", err
	}
	p.logger.Info("identity claimed", "device_id", deviceID, "token", token)
	return deviceID, nil
}

// ReleaseAll clears every binding, returning all identities to the pool.
// Keys and external credentials are untouched.
func (p *Pool) ReleaseAll(ctx context.Context) error {
	if err := p.repo.ReleaseAll(ctx); err != nil {
		return err
	}
	p.logger.Info("all identity bindings cleared")
	return nil
}

// Delete revokes one identity's external credential, then removes its
// record. A credential failure aborts the delete so the record is never
// orphaned from a still-live credential.
func (p *Pool) Delete(ctx context.Context, deviceID string) error {
	if err := p.issuer.Delete(ctx, deviceID); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCredentialIssuance, deviceID, err)
	}
	if err := p.repo.Delete(ctx, deviceID); err != nil {
		return err
	}
	p.logger.Info("identity deleted", "device_id", deviceID)
	return nil
}

// DeleteAll removes every identity.
//
// Credential revocation is best-effort per key (failures are logged and
// skipped), then all records are cleared in one statement. An empty pool is
// a no-op: no identities are invented for keys that were never provisioned.
func (p *Pool) DeleteAll(ctx context.Context) (int, error) {
	keys, err := p.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	for _, deviceID := range keys {
		if err := p.issuer.Delete(ctx, deviceID); err != nil {
			p.logger.Warn("credential revocation failed, continuing",
				"device_id", deviceID, "error", err)
		}
	}

	if err := p.repo.DeleteAll(ctx); err != nil {
		return 0, err
	}
	p.logger.Info("all identities deleted", "count", len(keys))
	return len(keys), nil
}

// List returns all identity keys in ascending order.
func (p *Pool) List(ctx context.Context) ([]string, error) {
	return p.repo.List(ctx)
}

// ConnectionString renders the external connection string for deviceID.
func (p *Pool) ConnectionString(deviceID string) string {
	return p.issuer.ConnectionString(deviceID)
}

// IsExhausted reports whether err represents an empty pool.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrPoolExhausted)
}

// keyFor renders the identity key for a 1-based sequence number.
func (p *Pool) keyFor(n int) string {
	return fmt.Sprintf("%s%0*d", p.prefix, keyNumberWidth, n)
}
