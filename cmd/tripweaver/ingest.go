package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/config"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/vectorindex"
)

func newIngestCmd(configPath *string) *cobra.Command {
	var (
		batchSize int
		workers   int
		reset     bool
	)
	cmd := &cobra.Command{
		Use:   "ingest CORPUS.yaml...",
		Short: "Embed travel documents into the knowledge index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg config.Config
				idx *vectorindex.Index
			)
			app := fx.New(coreModule(*configPath), fx.NopLogger, fx.Populate(&cfg, &idx))
			if err := app.Start(cmd.Context()); err != nil {
				return err
			}
			defer app.Stop(context.WithoutCancel(cmd.Context()))
			if reset {
				idx.Reset()
			}

			for _, path := range args {
				corpus, err := vectorindex.LoadCorpusFile(path)
				if err != nil {
					return err
				}
				ids, err := vectorindex.Ingest(cmd.Context(), idx, corpus.IndexDocuments(), batchSize, workers)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				log.Printf("Corpus ingested (file: %s, documents: %d)", path, len(ids))
			}

			if err := idx.Save(cfg.Index.Path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Index saved to %s (%d documents)\n", cfg.Index.Path, idx.Count())
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 32, "documents embedded per request")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent embedding requests")
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the existing index first")
	return cmd
}
