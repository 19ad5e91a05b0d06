package cmd

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/sdmverify/pkg/sdm"
)

var (
	version = "0.1.0"

	masterKeyHex string
	sdmmacParam  string
	requireLRP   bool
	deriveLegacy bool
	jsonOutput   bool
)

var rootCmd = &cobra.Command{
	Use:     "sunverify",
	Short:   "Verify and decode NTAG 424 DNA SUN messages",
	Version: version,
	Long: `sunverify v` + version + `
Decrypt and verify Secure Unique NFC Message (SUN) URLs produced by
NTAG 424 DNA tags in Secure Dynamic Messaging mode, supporting both the
AES and LRP (Leakage Resilient Primitive) cryptosystems.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&masterKeyHex, "master-key", "00000000000000000000000000000000",
		"AES master key, hex-encoded (16 bytes). All-zero runs in demo mode.")
	rootCmd.PersistentFlags().StringVar(&sdmmacParam, "sdmmac-param", "cmac",
		"Query parameter name appended to the MAC input in SEPARATED mode")
	rootCmd.PersistentFlags().BoolVar(&requireLRP, "require-lrp", false,
		"Reject an otherwise-valid message that used the AES scheme instead of LRP")
	rootCmd.PersistentFlags().BoolVar(&deriveLegacy, "legacy-kdf", false,
		"Use the pre-2023-01-24 PBKDF2 key-derivation scheme instead of the HMAC/CMAC one")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildConfig() (sdm.Config, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return sdm.Config{}, fmt.Errorf("invalid --master-key: %w", err)
	}
	if len(key) != 16 {
		return sdm.Config{}, fmt.Errorf("--master-key must be 16 bytes, got %d", len(key))
	}

	mode := sdm.DeriveNew
	if deriveLegacy {
		mode = sdm.DeriveLegacy
	}

	cfg := sdm.Config{
		MasterKey:   key,
		DeriveMode:  mode,
		SDMMACParam: sdmmacParam,
		RequireLRP:  requireLRP,
	}

	slog.Debug("configured verifier", "derive_mode", cfg.DeriveMode, "require_lrp", cfg.RequireLRP, "sdmmac_param", cfg.SDMMACParam)
	return cfg, nil
}
