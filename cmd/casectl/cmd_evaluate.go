package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"casework/internal/app"
	"casework/internal/casefile"
	"casework/internal/casestore"
	"casework/internal/enablement"
	"casework/internal/events"
	"casework/internal/extraction"
	"casework/internal/pipeline"
	casehandler "casework/internal/pipeline/handler"
	"casework/internal/platform/config"
	"casework/pkg/platform/audit/publishers/compliance"
	auditmemory "casework/pkg/platform/audit/store/memory"
)

type evaluateFlags struct {
	files  map[casefile.Kind]*string
	caseID string
	asJSON bool
}

func newEvaluateCmd(g *globalFlags) *cobra.Command {
	fl := &evaluateFlags{files: make(map[casefile.Kind]*string, len(casefile.AllKinds))}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the pipeline on local documents and store the decision",
		Example: "  casectl evaluate --bank_statement statement.csv --emirates_id id.json \\\n" +
			"    --credit_report report.json --assets_liabilities assets.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvaluate(cmd, g, fl)
		},
	}
	f := cmd.Flags()
	for _, kind := range casefile.AllKinds {
		fl.files[kind] = f.String(string(kind), "", fmt.Sprintf("path to the %s document", kind))
	}
	f.StringVar(&fl.caseID, "case-id", "", "case ID (generated when empty)")
	f.BoolVar(&fl.asJSON, "json", false, "print the decision as JSON")
	return cmd
}

func runEvaluate(cmd *cobra.Command, g *globalFlags, fl *evaluateFlags) error {
	ctx := cmd.Context()
	docs, err := readDocuments(fl.files)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("at least one document is required")
	}

	cfg, err := g.config()
	if err != nil {
		return err
	}
	log, err := g.logger(cmd)
	if err != nil {
		return err
	}
	policies, err := config.LoadPolicies(cfg.PolicyFile)
	if err != nil {
		return err
	}
	store, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	auditor := compliance.New(auditmemory.NewInMemoryStore())
	defer auditor.Close()

	builder := app.NewBuilder(cfg, nil, log)
	defer builder.Close()
	stages, err := builder.Stages(ctx, policies)
	if err != nil {
		return err
	}
	o, err := pipeline.New(stages,
		pipeline.WithLogger(log),
		pipeline.WithSinkTimeout(cfg.Pipeline.SinkTimeout),
		pipeline.WithSinks(
			casestore.NewSink(store),
			enablement.NewSink(store),
			events.NewAuditSink(auditor),
		),
	)
	if err != nil {
		return err
	}

	snap, err := o.Run(ctx, fl.caseID, docs)
	if err != nil {
		return err
	}
	if fl.asJSON {
		return writeJSON(cmd.OutOrStdout(), casehandler.FromSnapshot(snap))
	}
	printSnapshot(cmd.OutOrStdout(), snap)
	return nil
}

func readDocuments(paths map[casefile.Kind]*string) (map[casefile.Kind]extraction.Document, error) {
	docs := make(map[casefile.Kind]extraction.Document, len(paths))
	for _, kind := range casefile.AllKinds {
		p := strings.TrimSpace(*paths[kind])
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", kind, err)
		}
		docs[kind] = extraction.Document{Kind: kind, Filename: filepath.Base(p), Data: data}
	}
	return docs, nil
}

func printSnapshot(w io.Writer, snap casefile.Snapshot) {
	d := snap.Decision
	fmt.Fprintf(w, "Case:        %s\n", snap.ID)
	fmt.Fprintf(w, "Decision:    %s\n", d.Status)
	fmt.Fprintf(w, "Score:       %.2f\n", d.Score)
	fmt.Fprintf(w, "Confidence:  %.2f\n", d.Confidence)
	if len(d.Reasons) > 0 {
		fmt.Fprintf(w, "Reasons:\n")
		for _, r := range d.Reasons {
			fmt.Fprintf(w, "  - %s\n", r.Text)
		}
	}
	if failed := snap.Documents.Failed(); len(failed) > 0 {
		fmt.Fprintf(w, "Failed documents:\n")
		for _, k := range failed {
			fmt.Fprintf(w, "  - %s (%s)\n", k, snap.Documents[k].Failure.Category)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
