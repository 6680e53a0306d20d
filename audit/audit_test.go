package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/claim-agent/config"
	"github.com/fabfab/claim-agent/database"
	"github.com/fabfab/claim-agent/decision"
)

type recordingExecer struct {
	sql  string
	args []any
	err  error
}

func (r *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

type recorderFunc func(ctx context.Context, entry Entry) error

func (f recorderFunc) Record(ctx context.Context, entry Entry) error { return f(ctx, entry) }

func sampleEntry() Entry {
	amount := 50000.0
	return Entry{
		RequestID: uuid.NewString(),
		Query:     "knee surgery, 3-month-old policy",
		Result: decision.Result{
			Decision: decision.Approved,
			Amount:   &amount,
			Justification: []decision.Justification{
				{Clause: "knee surgery is covered", Source: "policy.pdf", ChunkIndex: 3, Similarity: 0.9},
				{Clause: "claims within 30 days", Source: "terms.docx", ChunkIndex: 0, Similarity: 0.7},
			},
			Explanation: "covered",
		},
		Source:         decision.SourceModel,
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		ChunksIndexed:  12,
		TopK:           6,
		Documents:      []string{"policy.pdf", "terms.docx"},
		DecidedAt:      time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
	}
}

func TestPostgresRecorderInsertsEntry(t *testing.T) {
	db := &recordingExecer{}
	entry := sampleEntry()

	require.NoError(t, NewPostgresRecorder(db).Record(context.Background(), entry))

	assert.Contains(t, db.sql, "INSERT INTO claim_decisions")
	require.Len(t, db.args, 13)
	assert.Equal(t, entry.RequestID, db.args[0])
	assert.Equal(t, "approved", db.args[2])
	assert.Equal(t, "model", db.args[3])
	assert.Equal(t, entry.Result.Amount, db.args[4])

	var justification []decision.Justification
	require.NoError(t, json.Unmarshal(db.args[6].([]byte), &justification))
	assert.Equal(t, entry.Result.Justification, justification)
	assert.JSONEq(t, `["policy.pdf","terms.docx"]`, string(db.args[7].([]byte)))
}

func TestPostgresRecorderWrapsErrors(t *testing.T) {
	db := &recordingExecer{err: errors.New("connection refused")}
	err := NewPostgresRecorder(db).Record(context.Background(), sampleEntry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert claim decision")

	err = NewPostgresRecorder(nil).Record(context.Background(), sampleEntry())
	assert.Error(t, err)
}

func TestGraphRecorderNilDriver(t *testing.T) {
	err := NewGraphRecorder(nil).Record(context.Background(), sampleEntry())
	assert.Error(t, err)
}

func TestToClaimDecisionRanksCitations(t *testing.T) {
	claim := ToClaimDecision(sampleEntry())

	assert.Equal(t, "approved", claim.Decision)
	require.Len(t, claim.Citations, 2)
	assert.Equal(t, 1, claim.Citations[0].Rank)
	assert.Equal(t, "policy.pdf", claim.Citations[0].Document)
	assert.Equal(t, 3, claim.Citations[0].ChunkIndex)
	assert.Equal(t, 2, claim.Citations[1].Rank)
}

func TestMultiJoinsErrors(t *testing.T) {
	calls := 0
	ok := recorderFunc(func(context.Context, Entry) error { calls++; return nil })
	failing := recorderFunc(func(context.Context, Entry) error { calls++; return errors.New("graph down") })

	err := Multi{failing, ok, Nop{}}.Record(context.Background(), sampleEntry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph down")
	assert.Equal(t, 2, calls)

	assert.NoError(t, Multi{ok}.Record(context.Background(), sampleEntry()))
}

func TestEnsureAuditSchema(t *testing.T) {
	db := &recordingExecer{}
	require.NoError(t, database.EnsureAuditSchema(context.Background(), db))
	assert.Contains(t, db.sql, "claim_decisions")

	assert.Error(t, database.EnsureAuditSchema(context.Background(), nil))
}

func TestPostgresRecorderIntegration(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Audit.PostgresDSN, "AUDIT_POSTGRES_DSN must be set")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Audit.PostgresDSN)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, database.EnsureAuditSchema(ctx, pool))

	entry := sampleEntry()
	require.NoError(t, NewPostgresRecorder(pool).Record(ctx, entry))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM claim_decisions WHERE request_id = $1", entry.RequestID)
	})

	var decisionValue string
	require.NoError(t, pool.QueryRow(ctx, "SELECT decision FROM claim_decisions WHERE request_id = $1", entry.RequestID).Scan(&decisionValue))
	assert.Equal(t, "approved", decisionValue)
}
