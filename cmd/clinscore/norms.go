package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func normsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "norms",
		Short: "Inspect norm tables and instrument definitions",
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Load and validate norm tables and definitions, then list them",
		RunE: func(cmd *cobra.Command, args []string) error {
			normsDir, err := dirFlag(cmd, "norms-dir", normsDirOf)
			if err != nil {
				return err
			}
			defsDir, err := dirFlag(cmd, "definitions-dir", definitionsDirOf)
			if err != nil {
				return err
			}

			store, err := loadNorms(normsDir)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(defsDir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tKIND\tVERSION\tCONVENTION\tBANDS\tSOURCE")
			for _, t := range store.Tables() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", t.ID, t.Kind, t.Version, t.Convention, t.Bands, t.Source)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "INSTRUMENT\tVERSION\tQUESTIONS\tTITLE")
			for _, d := range cat.List() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.Code, d.Version, len(d.Questions), d.Title)
			}
			return w.Flush()
		},
	}
	checkCmd.Flags().String("norms-dir", "", "Directory of norm tables overriding the embedded ones (default NORMS_DIR)")
	checkCmd.Flags().String("definitions-dir", "", "Directory of instrument definitions overriding the embedded ones (default DEFINITIONS_DIR)")
	cmd.AddCommand(checkCmd)

	return cmd
}
