package knowledge

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/claim-agent/config"
	"github.com/fabfab/claim-agent/database"
)

func TestSyncDecisionNilDriver(t *testing.T) {
	err := SyncDecision(context.Background(), nil, ClaimDecision{})
	assert.Error(t, err)
}

func TestCitedClausesNilDriver(t *testing.T) {
	_, err := CitedClauses(context.Background(), nil, 5)
	assert.Error(t, err)
}

func TestClauseIDCombinesDocumentAndPosition(t *testing.T) {
	assert.Equal(t, "policy.pdf#3", clauseID("policy.pdf", 3))
	assert.NotEqual(t, clauseID("a", 12), clauseID("a1", 2))
}

func TestToInt(t *testing.T) {
	assert.Equal(t, 4, toInt(int64(4)))
	assert.Equal(t, 2, toInt(int32(2)))
	assert.Equal(t, 0, toInt(nil))
}

func TestSyncDecisionIntegration(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Audit.Neo4jURI, "AUDIT_NEO4J_URI must be set")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	driver, err := database.NewNeo4jDriver(ctx, cfg.Audit.Neo4jURI, cfg.Audit.Neo4jUser, cfg.Audit.Neo4jPass)
	require.NoError(t, err)
	defer driver.Close(ctx)

	requestID := uuid.NewString()
	document := "integration-" + requestID + ".pdf"

	cleanup := func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, "MATCH (n) WHERE n.request_id = $id DETACH DELETE n", map[string]any{"id": requestID})
		_, _ = session.Run(ctx, "MATCH (d:Document {name: $name}) OPTIONAL MATCH (c:Clause)-[:PART_OF]->(d) DETACH DELETE c, d", map[string]any{"name": document})
	}
	cleanup()
	t.Cleanup(cleanup)

	decision := ClaimDecision{
		RequestID: requestID,
		Query:     "knee surgery",
		Decision:  "approved",
		Source:    "model",
		Model:     "test",
		DecidedAt: time.Now(),
		Citations: []Citation{
			{Rank: 1, Document: document, ChunkIndex: 0, Clause: "knee surgery is covered", Similarity: 0.9},
			{Rank: 2, Document: document, ChunkIndex: 4, Clause: "claims within 30 days", Similarity: 0.6},
		},
	}
	require.NoError(t, SyncDecision(ctx, driver, decision))
	// a second sync must not duplicate citations
	require.NoError(t, SyncDecision(ctx, driver, decision))

	stats, err := CitedClauses(ctx, driver, 1000)
	require.NoError(t, err)

	found := 0
	for _, stat := range stats {
		if stat.Document != document {
			continue
		}
		found++
		assert.Equal(t, 1, stat.Citations)
		assert.Equal(t, 1, stat.Approved)
	}
	assert.Equal(t, 2, found)
}
