// Package signers provides Signer implementations.
//
//   - FromSecret: Wraps a Stellar secret key (S...) using the SDK keypair for signing.
//     Intended for server-side use, where the caller supplies the secret per request.
//   - Random: Generates a fresh keypair for account creation.
//   - FromCallback: Delegates to an external signer (HSM, custodial API) that only
//     ever sees transaction envelopes.
//
// Secrets are held only for the lifetime of the returned Signer.
package signers
