package cmd

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/barnettlynn/sdmverify/pkg/sdm"
)

var (
	plainUIDHex string
	plainCtrHex string
	plainMACHex string
	plainLRP    bool
)

var plainCmd = &cobra.Command{
	Use:   "verify-plain",
	Short: "Verify a plain (cleartext UID/counter) SUN URL",
	Long: `Verifies the "plain SUN" variant where the UID and read counter are
carried as cleartext hex query parameters and only SDMMAC binds them to
the tag's key, the counterpart of the full encrypted-PICCData path
that "verify" and "tap" exercise.`,
	RunE: runPlain,
}

func init() {
	plainCmd.Flags().StringVar(&plainUIDHex, "uid", "", "Tag UID, hex-encoded (7 bytes, required)")
	plainCmd.Flags().StringVar(&plainCtrHex, "ctr", "", "Read counter, hex-encoded big-endian (3 bytes, required)")
	plainCmd.Flags().StringVar(&plainMACHex, "mac", "", "SDMMAC, hex-encoded (8 bytes, required)")
	plainCmd.Flags().BoolVar(&plainLRP, "lrp", false, "The tag uses the LRP scheme instead of AES")
	_ = plainCmd.MarkFlagRequired("uid")
	_ = plainCmd.MarkFlagRequired("ctr")
	_ = plainCmd.MarkFlagRequired("mac")
	rootCmd.AddCommand(plainCmd)
}

func runPlain(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	uid, err := hex.DecodeString(plainUIDHex)
	if err != nil {
		return fmt.Errorf("invalid --uid: %w", err)
	}
	ctr, err := hex.DecodeString(plainCtrHex)
	if err != nil {
		return fmt.Errorf("invalid --ctr: %w", err)
	}
	mac, err := hex.DecodeString(plainMACHex)
	if err != nil {
		return fmt.Errorf("invalid --mac: %w", err)
	}

	mode := sdm.EncModeAES
	if plainLRP {
		mode = sdm.EncModeLRP
	}

	res, err := sdm.ValidatePlainSUN(cfg, uid, ctr, sdmmacParam, mac, mode)
	if err != nil {
		if jsonOutput {
			fmt.Printf(`{"ok":false,"error":%q}`+"\n", err.Error())
			return nil
		}
		return err
	}

	if jsonOutput {
		fmt.Printf("{\"ok\":true,\"uid\":%q,\"read_counter\":%d}\n",
			hex.EncodeToString(res.UID), res.ReadCounter)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	style := table.StyleRounded
	style.Color.Header = text.Colors{text.FgCyan, text.Bold}
	t.SetStyle(style)
	t.SetTitle("PLAIN SUN VERIFIED")
	t.AppendRow(table.Row{"UID", hex.EncodeToString(res.UID)})
	t.AppendRow(table.Row{"Read counter", res.ReadCounter})
	t.Render()
	return nil
}
