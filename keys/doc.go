// Package keys holds the operator-side key material of an issuer deployment:
// ed25519 signing seeds for claimants, mints and operators, role-seed
// derivation, and the signature primitives used to attest round manifests.
//
// Seeds live in a local directory (KeyStore). Signer keys are rendered as
// "ed25519:<base58>" or "dilithium3:<base64>".
package keys
