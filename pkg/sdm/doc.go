/*
Package sdm validates and decrypts dynamic authentication URLs (SUN -
Secure Unique NFC Message) emitted by NXP NTAG 424 DNA tags.

Each tap of a properly configured tag produces a short query string
carrying an encrypted card identifier, a monotonic read counter, an
optional encrypted file payload, and a truncated message authentication
code. A verifier holding the tag's master key uses this package to:

  - recover the tag's UID and read counter,
  - check the message was produced by a genuine tag holding the
    expected key (MAC verification),
  - decrypt an attached file payload, if any,
  - support both the original AES-based scheme and the newer Leakage
    Resilient Primitive (LRP) scheme from AN12304.

# Layout

	block.go     AES-ECB / AES-CMAC primitives, padding, truncation
	lrp.go       the LRP engine (AN12304): tables, LRICB, CMAC_LRP
	kdf.go       per-tag key derivation (new HMAC/CMAC and legacy PBKDF2)
	session.go   SDM session-key construction (SV1/SV2)
	piccdata.go  PICCData header parsing
	decoder.go   DecryptSUNMessage, ValidatePlainSUN: the end-to-end pipeline
	params.go    BULK/SEPARATED URL-argument decoding
	config.go    the immutable configuration bundle
	verifier.go  URL-level façade: VerifyBulkURL, VerifySeparatedURL
	tamper.go    TagTamper status and bulk file-record unwrapping
	generate.go  the encode-side counterpart, for tests and fixtures

# Threat model

This is a reader-side (PCD) library. The LRP engine in particular is
explicitly unsuitable for card-side (PICC) use: it does not attempt to
resist power or timing side channels beyond the documented "equal work
on all inputs" posture for the one length-probing oracle the original
datasheet-derived implementation worried about (see decoder.go). It
performs no I/O and holds no state across calls; every exported
operation is a pure function safe to call concurrently from any number
of goroutines.
*/
package sdm
