package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/internal/prefill"
)

func prefillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefill <instrument>",
		Short: "Normalize a stored answer record against the current definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := instrument.ParseCode(args[0])
			if err != nil {
				return err
			}
			recordPath, _ := cmd.Flags().GetString("record")
			showDiff, _ := cmd.Flags().GetBool("diff")
			format, _ := cmd.Flags().GetString("format")

			defsDir, err := dirFlag(cmd, "definitions-dir", definitionsDirOf)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(defsDir)
			if err != nil {
				return err
			}
			def, err := cat.Get(code)
			if err != nil {
				return err
			}
			stored, err := readRecord(cmd, recordPath)
			if err != nil {
				return err
			}

			normalized := prefill.Normalize(def, stored)
			if !showDiff {
				return writeOutput(cmd, format, normalized)
			}
			d, err := prefill.Diff(stored, normalized)
			if err != nil {
				return err
			}
			if d == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "record is already canonical")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), d)
			return nil
		},
	}
	cmd.Flags().String("record", "-", "JSON record file, - for stdin")
	cmd.Flags().String("definitions-dir", "", "Directory of instrument definitions overriding the embedded ones (default DEFINITIONS_DIR)")
	cmd.Flags().Bool("diff", false, "Print a unified diff instead of the normalized record")
	cmd.Flags().String("format", "json", "Output format: json or yaml")
	return cmd
}
