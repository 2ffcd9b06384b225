// Package identity manages the durable pool of assignable device
// identities.
//
// Identities are provisioned in bulk as sequentially numbered keys
// (simdevice0001, simdevice0002, ...), claimed by devices over the duplex
// channel, and released or deleted by administrative operations. Claim
// atomicity lives in the storage layer: a single conditional UPDATE
// statement selects and binds the lowest unassigned key, so concurrent
// claimers against a shared store can never receive the same identity.
//
// Credential issuance in the external device-identity platform is reached
// through the Issuer interface; HubIssuer is the local implementation used
// by the simulator deployment.
package identity
