package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ChrisHK/label-printer/internal/checksum"

	"github.com/spf13/cobra"
)

func newChecksumCommand() *cobra.Command {
	var verify string

	cmd := &cobra.Command{
		Use:   "checksum [file]",
		Short: "Print the batch checksum of a JSON array of items (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			items, err := checksum.DecodeItems(data)
			if err != nil {
				return err
			}
			digest, err := checksum.Calculate(items)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest)

			if verify != "" && !checksum.Verify(items, verify) {
				return fmt.Errorf("checksum mismatch: got %s, want %s", digest, verify)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&verify, "verify", "", "fail unless the digest equals this value")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
