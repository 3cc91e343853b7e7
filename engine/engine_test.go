package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/concurrency"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/optimizer"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	if cfg.Optimizer == (optimizer.Config{}) {
		// Small, seeded GA keeps statement latency test-friendly.
		cfg.Optimizer = optimizer.Config{PopulationSize: 8, Generations: 3, MutationRate: 0.2, Elitism: 2, Seed: 1}
	}
	eng, err := New(cfg)
	require.NoError(t, err)
	return eng
}

func seedUsers(t *testing.T, eng *Engine) {
	t.Helper()
	ctx := context.Background()
	res := eng.Query(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(50), age INTEGER);")
	require.True(t, res.Success, res.Message)
	for _, stmt := range []string{
		"INSERT INTO users (id, name, age) VALUES (1, 'Alice', 30);",
		"INSERT INTO users (id, name, age) VALUES (2, 'Bob', 25);",
		"INSERT INTO users (id, name, age) VALUES (3, 'Carol', 35);",
	} {
		res := eng.Query(ctx, stmt)
		require.True(t, res.Success, res.Message)
	}
}

// Full pipeline over a filtered single-table SELECT, GA included.
func TestQueryFullPipeline(t *testing.T) {
	eng := newTestEngine(t, Config{})
	seedUsers(t, eng)

	res := eng.Query(context.Background(), "SELECT name FROM users WHERE age >= 30;")
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Data, 2)
	var names []any
	for _, row := range res.Data {
		names = append(names, row["name"])
	}
	assert.ElementsMatch(t, []any{"Alice", "Carol"}, names)
}

func TestQueryJoinThroughGA(t *testing.T) {
	eng := newTestEngine(t, Config{})
	seedUsers(t, eng)
	ctx := context.Background()
	require.True(t, eng.Query(ctx, "CREATE TABLE orders (order_id INTEGER PRIMARY KEY, user_id INTEGER, amount INTEGER);").Success)
	require.True(t, eng.Query(ctx, "INSERT INTO orders (order_id, user_id, amount) VALUES (10, 1, 100);").Success)
	require.True(t, eng.Query(ctx, "INSERT INTO orders (order_id, user_id, amount) VALUES (11, 3, 70);").Success)

	res := eng.Query(ctx,
		"SELECT name FROM users INNER JOIN orders ON users.id = orders.user_id WHERE orders.amount > 80;")
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Alice", res.Data[0]["name"])
}

func TestParseErrorSurfacesAsResult(t *testing.T) {
	eng := newTestEngine(t, Config{})
	res := eng.Query(context.Background(), "SELEC name FROM users;")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, 1, ExitCode(res))
}

func TestValidationErrorUnknownTable(t *testing.T) {
	eng := newTestEngine(t, Config{})
	res := eng.Query(context.Background(), "SELECT name FROM ghosts;")
	assert.False(t, res.Success)
	assert.Equal(t, 1, ExitCode(res))
}

func TestExecutionErrorMapsToInternalExitCode(t *testing.T) {
	eng := newTestEngine(t, Config{SkipGA: true})
	seedUsers(t, eng)
	res := eng.Query(context.Background(), "SELECT ghost FROM users;")
	assert.False(t, res.Success)
	assert.Equal(t, 4, ExitCode(res))
}

func TestSuccessExitCodeZero(t *testing.T) {
	eng := newTestEngine(t, Config{SkipGA: true})
	seedUsers(t, eng)
	res := eng.Query(context.Background(), "SELECT name FROM users;")
	assert.Equal(t, 0, ExitCode(res))
}

func TestTransactionBlockCommits(t *testing.T) {
	eng := newTestEngine(t, Config{SkipGA: true})
	seedUsers(t, eng)
	ctx := context.Background()

	res := eng.Query(ctx,
		"BEGIN TRANSACTION UPDATE users SET age = 31 WHERE id = 1; DELETE FROM users WHERE id = 2; COMMIT;")
	require.True(t, res.Success, res.Message)

	rows := eng.Query(ctx, "SELECT age FROM users WHERE id = 1;").Data
	require.Len(t, rows, 1)
	assert.Equal(t, 31, rows[0]["age"])
	assert.Empty(t, eng.Query(ctx, "SELECT id FROM users WHERE id = 2;").Data)
}

func TestWALRollbackOnFailedTransaction(t *testing.T) {
	dir := t.TempDir()
	eng := newTestEngine(t, Config{DataDir: dir, SkipGA: true})
	seedUsers(t, eng)
	ctx := context.Background()

	// The second statement fails (unknown table at execution); the
	// first statement's write must roll back.
	res := eng.Query(ctx,
		"BEGIN TRANSACTION UPDATE users SET age = 99 WHERE id = 1; DELETE FROM nowhere; COMMIT;")
	assert.False(t, res.Success)

	rows := eng.Query(ctx, "SELECT age FROM users WHERE id = 1;").Data
	require.Len(t, rows, 1)
	assert.Equal(t, 30, rows[0]["age"], "aborted transaction's write rolled back")
}

func TestFreshDataDirStartsWithoutTables(t *testing.T) {
	dir := t.TempDir()
	eng := newTestEngine(t, Config{DataDir: dir, SkipGA: true})
	seedUsers(t, eng)
	require.True(t, eng.Query(context.Background(), "UPDATE users SET age = 40 WHERE id = 1;").Success)

	// A second engine over a different data directory shares nothing
	// with the first: its log is new and its catalog starts empty, so
	// the users table is unknown there.
	eng2 := newTestEngine(t, Config{DataDir: filepath.Join(dir, "fresh"), SkipGA: true})
	res := eng2.Query(context.Background(), "SELECT name FROM users;")
	assert.False(t, res.Success, "fresh data dir has no users table")
}

func TestConcurrencyAbortMapsToExitCodeTwo(t *testing.T) {
	res := ExecutionResult{err: concurrency.ErrTxnAborted.New(uint64(1), "victim")}
	assert.Equal(t, 2, ExitCode(res))
}

func TestQueryWorksUnderEachAlgorithm(t *testing.T) {
	for _, algo := range []concurrency.Algorithm{
		concurrency.AlgoTwoPhase,
		concurrency.AlgoTimestamp,
		concurrency.AlgoOptimistic,
		concurrency.AlgoMVCC,
	} {
		eng := newTestEngine(t, Config{
			SkipGA:      true,
			Concurrency: concurrency.Config{Algorithm: algo},
		})
		seedUsers(t, eng)
		res := eng.Query(context.Background(), "SELECT name FROM users WHERE age > 26;")
		require.True(t, res.Success, "algorithm %s: %s", algo, res.Message)
		assert.Len(t, res.Data, 2, "algorithm %s", algo)
	}
}
