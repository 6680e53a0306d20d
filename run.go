package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fabfab/claim-agent/ingestion"
	"github.com/fabfab/claim-agent/pipeline"
)

var (
	runQuery string
	runDocs  []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Decide one claim query and print the response as JSON",
	Long: `Runs the pipeline once. Each --doc is a URL or a local file path; local
files are sent inline.`,
	Example: `  claim-agent run --query "knee surgery, 3-month-old policy" --doc policy.pdf --doc https://example.com/terms.docx`,
	RunE:    runOnce,
}

func init() {
	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "claim query")
	runCmd.Flags().StringArrayVarP(&runDocs, "doc", "d", nil, "document URL or file path (repeatable)")
	_ = runCmd.MarkFlagRequired("query")
	_ = runCmd.MarkFlagRequired("doc")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	refs, err := loadReferences(runDocs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Server.RequestTimeout)
		defer cancel()
	}

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := svc.Run(ctx, pipeline.Request{Query: runQuery, Documents: refs})
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func loadReferences(docs []string) ([]ingestion.Reference, error) {
	if len(docs) == 0 {
		return nil, errors.New("at least one --doc is required")
	}

	refs := make([]ingestion.Reference, 0, len(docs))
	for _, doc := range docs {
		doc = strings.TrimSpace(doc)
		if strings.HasPrefix(doc, "http://") || strings.HasPrefix(doc, "https://") {
			refs = append(refs, ingestion.Reference{URL: doc})
			continue
		}

		data, err := os.ReadFile(doc)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", doc, err)
		}
		refs = append(refs, ingestion.Reference{
			Filename:      filepath.Base(doc),
			ContentBase64: base64.StdEncoding.EncodeToString(data),
		})
	}
	return refs, nil
}
