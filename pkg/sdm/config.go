package sdm

// Config is the immutable, value-typed bundle the core decoder is
// parameterized over. A Config is built once by the caller (typically
// from CLI flags or a small static settings file) and passed by value
// into every Decode call; nothing in this package holds configuration
// as package-level mutable state (spec.md §9).
type Config struct {
	// MasterKey is the AppMasterKey (or, for the legacy scheme, the
	// application master key) diversification starts from. A 16-byte
	// all-zero MasterKey runs every derivation in demo mode.
	MasterKey []byte

	// DeriveMode selects the new (2023-01-24) HMAC/CMAC scheme or the
	// legacy PBKDF2 scheme. A deployment runs exactly one of these at a
	// time — it is a provisioning-time property of the tag population,
	// not something a verifier should guess per request (spec.md §4.3).
	DeriveMode DeriveMode

	// SDMMACParam is the query-argument name (commonly "cmac") appended
	// to the MAC input in SEPARATED mode (spec.md §4.4). Empty disables
	// the suffix unconditionally.
	SDMMACParam string

	// RequireLRP rejects an otherwise-valid AES-mode message at the
	// verifier façade: deployments that provision only LRP-mode tags use
	// this to reject a spoofed or downgraded AES message outright.
	RequireLRP bool
}

// DefaultConfig returns a Config with demo-mode zero key material, the
// new HMAC/CMAC derivation scheme, "cmac" as the SEPARATED-mode MAC
// parameter, and no LRP requirement.
func DefaultConfig() Config {
	return Config{
		MasterKey:   make([]byte, 16),
		DeriveMode:  DeriveNew,
		SDMMACParam: "cmac",
		RequireLRP:  false,
	}
}
