package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/factory/pkg/factory"
)

// sqlStore holds the database/sql logic shared by SQLiteStore and
// PostgresStore. Queries are written with ? placeholders and rebound for
// dialects that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool

	// mu protects db, models and closed.
	mu     sync.RWMutex
	models map[string]string
	closed bool
}

func newSQLStore(numbered bool) sqlStore {
	return sqlStore{
		numbered: numbered,
		models:   make(map[string]string),
	}
}

func (s *sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ready reports whether the database is open.
func (s *sqlStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil && !s.closed
}

// HasModel reports whether modelID is bound. It reads the model cache
// filled by loadModels and BindModel.
func (s *sqlStore) HasModel(modelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[modelID]
	return ok
}

func (s *sqlStore) loadModels(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM models`)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}
	defer rows.Close()

	models := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("failed to scan model: %w", err)
		}
		models[id] = name
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating models: %w", err)
	}

	s.mu.Lock()
	s.models = models
	s.mu.Unlock()
	return nil
}

// BindModel inserts the model row unless it exists.
func (s *sqlStore) BindModel(ctx context.Context, name string) (string, error) {
	if !s.Ready() {
		return "", factory.NewStoreUnavailableError("database not initialized")
	}

	id := factory.ModelID(name)
	if id == "" {
		return "", fmt.Errorf("model name %q has no letters or digits", name)
	}

	query := s.rebind(`
		INSERT INTO models (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)
	if _, err := s.db.ExecContext(ctx, query, id, name, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("failed to bind model: %w", err)
	}

	s.mu.Lock()
	if _, ok := s.models[id]; !ok {
		s.models[id] = name
	}
	s.mu.Unlock()

	return id, nil
}

// Models returns the bound model ids.
func (s *sqlStore) Models(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// CreateRecord inserts attrs as a JSON document.
func (s *sqlStore) CreateRecord(ctx context.Context, modelID string, attrs factory.Attrs) (factory.Record, error) {
	if !s.Ready() {
		return nil, factory.NewStoreUnavailableError("database not initialized")
	}
	if !s.HasModel(modelID) {
		return nil, factory.NewUnknownModelError(modelID)
	}

	rowID := uuid.NewString()
	rec := newRecord(attrs, rowID)
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	query := s.rebind(`
		INSERT INTO records (id, model_id, data, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if _, err := s.db.ExecContext(ctx, query, rowID, modelID, string(data), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	return rec, nil
}

// Records returns the decoded records of modelID.
func (s *sqlStore) Records(ctx context.Context, modelID string) ([]factory.Record, error) {
	if !s.Ready() {
		return nil, factory.NewStoreUnavailableError("database not initialized")
	}
	if !s.HasModel(modelID) {
		return nil, factory.NewUnknownModelError(modelID)
	}

	query := s.rebind(`
		SELECT data
		FROM records
		WHERE model_id = ?
		ORDER BY seq
	`)
	rows, err := s.db.QueryContext(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []factory.Record{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var rec factory.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Count returns the number of records of modelID.
func (s *sqlStore) Count(ctx context.Context, modelID string) (int, error) {
	if !s.Ready() {
		return 0, factory.NewStoreUnavailableError("database not initialized")
	}
	if !s.HasModel(modelID) {
		return 0, factory.NewUnknownModelError(modelID)
	}

	var n int
	query := s.rebind(`SELECT COUNT(*) FROM records WHERE model_id = ?`)
	if err := s.db.QueryRowContext(ctx, query, modelID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Truncate deletes the records of modelID.
func (s *sqlStore) Truncate(ctx context.Context, modelID string) error {
	if !s.Ready() {
		return factory.NewStoreUnavailableError("database not initialized")
	}
	if !s.HasModel(modelID) {
		return factory.NewUnknownModelError(modelID)
	}

	query := s.rebind(`DELETE FROM records WHERE model_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, modelID); err != nil {
		return fmt.Errorf("failed to truncate records: %w", err)
	}
	return nil
}

// HealthCheck pings the database.
func (s *sqlStore) HealthCheck(ctx context.Context) error {
	if !s.Ready() {
		return factory.NewStoreUnavailableError("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
