// Package vault seals small secrets at rest with a passphrase.
//
// A key is derived with Argon2id and the payload is encrypted with
// XChaCha20-Poly1305. The sealed form is a single ASCII line:
//
//	$vault$v=1$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<nonce_b64>$<ciphertext_b64>
//
// Sealed strings are untrusted input on Open and are bounds-checked before
// any key derivation runs.
package vault
