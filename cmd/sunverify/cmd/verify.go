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
	verifyURL  string
	verifyBulk bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a captured SUN URL",
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyURL, "url", "", "Full SUN URL as scanned (required)")
	verifyCmd.Flags().BoolVar(&verifyBulk, "bulk", false, "Treat the URL as BULK mode (single \"e\" parameter)")
	_ = verifyCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	var res *sdm.Result
	if verifyBulk {
		res, err = sdm.VerifyBulkURL(cfg, verifyURL)
	} else {
		res, err = sdm.VerifySeparatedURL(cfg, verifyURL)
	}
	if err != nil {
		if jsonOutput {
			fmt.Printf(`{"ok":false,"error":%q}`+"\n", err.Error())
			return nil
		}
		return err
	}

	if jsonOutput {
		printResultJSON(res)
		return nil
	}
	printResultTable(res)
	return nil
}

func printResultTable(res *sdm.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	style := table.StyleRounded
	style.Color.Header = text.Colors{text.FgCyan, text.Bold}
	t.SetStyle(style)
	t.SetTitle("SUN MESSAGE VERIFIED")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16},
		{Number: 2, WidthMin: 40},
	})

	t.AppendRow(table.Row{"UID", hex.EncodeToString(res.UID)})
	t.AppendRow(table.Row{"Read counter", res.ReadCounter})
	t.AppendRow(table.Row{"Encryption mode", encModeLabel(res.EncMode)})
	if res.FileData != nil {
		t.AppendRow(table.Row{"File data (hex)", hex.EncodeToString(res.FileData)})
		tamper := sdm.ParseTamperState(res.FileData)
		if tamper != sdm.TamperUnknown {
			t.AppendRow(table.Row{"Tamper state", tamper.String()})
		}
	}
	t.Render()
}

func printResultJSON(res *sdm.Result) {
	fmt.Printf("{\"ok\":true,\"uid\":%q,\"read_counter\":%d,\"enc_mode\":%q,\"file_data\":%q}\n",
		hex.EncodeToString(res.UID), res.ReadCounter, encModeLabel(res.EncMode), hex.EncodeToString(res.FileData))
}

func encModeLabel(mode sdm.EncMode) string {
	if mode == sdm.EncModeLRP {
		return "LRP"
	}
	return "AES"
}
