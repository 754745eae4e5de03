package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"casework/internal/app"
	"casework/internal/casefile"
	"casework/internal/extraction"
)

func newExtractCmd(g *globalFlags) *cobra.Command {
	var kind, file string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract one document and print its typed record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := casefile.ParseKind(kind)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			cfg, err := g.config()
			if err != nil {
				return err
			}
			log, err := g.logger(cmd)
			if err != nil {
				return err
			}
			builder := app.NewBuilder(cfg, nil, log)
			defer builder.Close()
			coordinator, err := builder.Extractor(cmd.Context())
			if err != nil {
				return err
			}

			delta, _ := coordinator.Extract(cmd.Context(), map[casefile.Kind]extraction.Document{
				k: {Kind: k, Filename: filepath.Base(file), Data: data},
			})
			result := delta.Documents[k]
			if !result.OK() {
				return fmt.Errorf("extract %s: %s: %s", k, result.Failure.Category, result.Failure.Cause)
			}
			return writeJSON(cmd.OutOrStdout(), result.Document)
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "kind", "", "document kind (required)")
	f.StringVar(&file, "file", "", "document path (required)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
