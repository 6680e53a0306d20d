package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabfab/claim-agent/database"
	"github.com/fabfab/claim-agent/knowledge"
)

var clausesLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Manage the decision audit stores",
}

var auditInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the Postgres audit schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Audit.PostgresDSN == "" {
			return fmt.Errorf("AUDIT_POSTGRES_DSN is not set")
		}

		ctx := cmd.Context()
		pool, err := database.NewPostgresPool(ctx, cfg.Audit.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres connection: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureAuditSchema(ctx, pool); err != nil {
			return err
		}
		cmd.Println("audit schema ready")
		return nil
	},
}

var auditClausesCmd = &cobra.Command{
	Use:   "clauses",
	Short: "List the most cited policy clauses from the decision graph",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Audit.Neo4jURI == "" {
			return fmt.Errorf("AUDIT_NEO4J_URI is not set")
		}

		ctx := cmd.Context()
		driver, err := database.NewNeo4jDriver(ctx, cfg.Audit.Neo4jURI, cfg.Audit.Neo4jUser, cfg.Audit.Neo4jPass)
		if err != nil {
			return fmt.Errorf("neo4j connection: %w", err)
		}
		defer driver.Close(ctx)

		stats, err := knowledge.CitedClauses(ctx, driver, clausesLimit)
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			cmd.Println("No decisions recorded.")
			return nil
		}

		for i, stat := range stats {
			cmd.Printf("[%d] %s#%d  cited %d (approved %d, rejected %d)\n", i+1, stat.Document, stat.ChunkIndex, stat.Citations, stat.Approved, stat.Rejected)
			cmd.Printf("    %s\n", truncateClause(stat.Clause, 160))
		}
		return nil
	},
}

func init() {
	auditClausesCmd.Flags().IntVarP(&clausesLimit, "limit", "n", 10, "number of clauses to list")
	auditCmd.AddCommand(auditInitCmd, auditClausesCmd)
	rootCmd.AddCommand(auditCmd)
}

func truncateClause(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
