package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/internal/norms"
	"github.com/ehr/clinscore/internal/scoring"
)

// readRecord decodes a JSON object from path, or from stdin when path is "-".
func readRecord(cmd *cobra.Command, path string) (map[string]any, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rec, nil
}

func writeOutput(cmd *cobra.Command, format string, v any) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// round-trip through JSON so the yaml keys follow the json tags
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	}
	return fmt.Errorf("unknown format %q (json or yaml)", format)
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <instrument>",
		Short: "Score one answer record and print the interpreted result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := instrument.ParseCode(args[0])
			if err != nil {
				return err
			}
			answersPath, _ := cmd.Flags().GetString("answers")
			age, _ := cmd.Flags().GetInt("age")
			gender, _ := cmd.Flags().GetString("gender")
			education, _ := cmd.Flags().GetInt("education")
			strict, _ := cmd.Flags().GetBool("strict")
			format, _ := cmd.Flags().GetString("format")

			answers, err := readRecord(cmd, answersPath)
			if err != nil {
				return err
			}
			normsDir, err := dirFlag(cmd, "norms-dir", normsDirOf)
			if err != nil {
				return err
			}
			store, err := loadNorms(normsDir)
			if err != nil {
				return err
			}
			g, err := scoring.ParseGender(gender)
			if err != nil {
				return err
			}
			demo := scoring.Demographics{AgeYears: age, Gender: g}
			if cmd.Flags().Changed("education") {
				demo.EducationLevel = &education
			}

			engine := scoring.NewEngine(norms.NewEngine(store))
			run := engine.ScoreAndInterpret
			if strict {
				run = engine.ScoreStrict
			}
			res, err := run(code, answers, demo)
			if err != nil {
				return err
			}
			return writeOutput(cmd, format, res)
		},
	}
	cmd.Flags().String("answers", "-", "JSON answer record file, - for stdin")
	cmd.Flags().String("norms-dir", "", "Directory of norm tables overriding the embedded ones (default NORMS_DIR)")
	cmd.Flags().Int("age", 0, "Age in years at the assessment date")
	cmd.Flags().String("gender", "", "M or F")
	cmd.Flags().Int("education", 0, "Education level 0-4")
	cmd.Flags().Bool("strict", false, "Fail when the total cannot be computed")
	cmd.Flags().String("format", "json", "Output format: json or yaml")
	return cmd
}
