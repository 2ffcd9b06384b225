package identity

import "errors"

// Domain errors for the identity package. Check with errors.Is().
var (
	// ErrPoolExhausted is returned by Claim when no unassigned identity exists.
	ErrPoolExhausted = errors.New("identity: pool exhausted")

	// ErrNotFound is returned when an identity key does not exist.
	ErrNotFound = errors.New("identity: not found")

	// ErrCredentialIssuance is returned when the external device-identity
	// platform rejects a create or delete call.
	ErrCredentialIssuance = errors.New("identity: credential issuance failed")
)
