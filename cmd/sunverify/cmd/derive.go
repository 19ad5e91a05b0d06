package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/sdmverify/pkg/sdm"
)

var (
	deriveUID   string
	deriveKeyNo int
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive a tag's SDMMetaReadKey and SDMFileReadKey from the configured master key",
	RunE:  runDerive,
}

func init() {
	deriveCmd.Flags().StringVar(&deriveUID, "uid", "", "Tag UID, hex-encoded (7 bytes, required)")
	deriveCmd.Flags().IntVar(&deriveKeyNo, "key-no", 1, "Key slot number")
	_ = deriveCmd.MarkFlagRequired("uid")
	rootCmd.AddCommand(deriveCmd)
}

func runDerive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	uid, err := hex.DecodeString(deriveUID)
	if err != nil {
		return fmt.Errorf("invalid --uid: %w", err)
	}

	mode := cfg.DeriveMode
	meta, err := sdm.DeriveUndiversifiedKey(mode, cfg.MasterKey, 1)
	if err != nil {
		return err
	}
	tagKey, err := sdm.DeriveTagKey(mode, cfg.MasterKey, uid, deriveKeyNo)
	if err != nil {
		return err
	}

	fmt.Printf("SDMMetaReadKey:  %s\n", hex.EncodeToString(meta))
	fmt.Printf("SDMFileReadKey:  %s (key #%d)\n", hex.EncodeToString(tagKey), deriveKeyNo)
	return nil
}
