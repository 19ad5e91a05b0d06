package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/sdmverify/internal/reader"
	"github.com/barnettlynn/sdmverify/pkg/sdm"
)

var tapReaderIndex int

var tapCmd = &cobra.Command{
	Use:   "tap",
	Short: "Read the current SUN URL off a tag over a PC/SC reader and verify it",
	RunE:  runTap,
}

func init() {
	tapCmd.Flags().IntVar(&tapReaderIndex, "reader", 0, "PC/SC reader index (use \"tap --list-readers\" to enumerate)")
	tapCmd.Flags().Bool("list-readers", false, "List available PC/SC readers and exit")
	rootCmd.AddCommand(tapCmd)
}

func runTap(cmd *cobra.Command, args []string) error {
	if listFlag, _ := cmd.Flags().GetBool("list-readers"); listFlag {
		names, err := reader.ListReaderNames()
		if err != nil {
			return err
		}
		for i, n := range names {
			fmt.Printf("[%d] %s\n", i, n)
		}
		return nil
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	conn, err := reader.Connect(tapReaderIndex)
	if err != nil {
		return err
	}
	defer conn.Close()

	slog.Info("connected", "reader", conn.Reader)

	ndef, err := reader.ReadNDEF(conn)
	if err != nil {
		return fmt.Errorf("reading NDEF: %w", err)
	}
	tappedURL, err := reader.ExtractURIRecord(ndef)
	if err != nil {
		return fmt.Errorf("extracting URI record: %w", err)
	}
	slog.Info("read tapped URL", "url", tappedURL)

	res, err := sdm.VerifySeparatedURL(cfg, tappedURL)
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
