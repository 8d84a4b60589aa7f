// Package store provides database access for the alert pipeline.
//
// # Design
//
// The store uses raw SQL with pgx. One Store serves every table; methods
// are grouped by concern across the files in this package. Convergence
// find-or-insert runs under a striped mutex keyed by alert identity so two
// pipeline workers cannot insert the same identity twice.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillsec/alertconv/db/migrate"
)

// convergeStripes bounds the number of identity locks held in memory. The
// key space is hashed onto the stripes; two distinct identities sharing a
// stripe serialize needlessly but stay correct.
const convergeStripes = 64

// Store provides database operations.
type Store struct {
	pool    *pgxpool.Pool
	stripes [convergeStripes]sync.Mutex
}

// NewStore creates a new store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewStoreFromURL creates a new store by connecting to the given database URL.
func NewStoreFromURL(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping tests database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool returns the underlying connection pool for advanced operations.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Store) MigrationStatus(ctx context.Context) (*migrate.Status, error) {
	return migrate.GetStatus(ctx, s.pool)
}

// lockIdentity locks the stripe for an identity key and returns the held
// mutex. Callers defer Unlock.
func (s *Store) lockIdentity(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &s.stripes[h.Sum32()%convergeStripes]
	mu.Lock()
	return mu
}

// lockIdentities locks the stripes for a set of identity keys, in stripe
// order so two callers holding overlapping sets cannot deadlock. The
// returned func releases them.
func (s *Store) lockIdentities(keys ...string) func() {
	idx := make([]uint32, 0, len(keys))
	for _, key := range keys {
		h := fnv.New32a()
		h.Write([]byte(key))
		idx = append(idx, h.Sum32()%convergeStripes)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })

	locked := make([]uint32, 0, len(idx))
	for i, n := range idx {
		if i > 0 && n == idx[i-1] {
			continue
		}
		s.stripes[n].Lock()
		locked = append(locked, n)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			s.stripes[locked[i]].Unlock()
		}
	}
}

// marshalJSONB renders a slice for a JSONB parameter. A nil slice becomes
// SQL NULL instead of the JSON text "null".
func marshalJSONB[T any](v []T) []byte {
	if v == nil {
		return nil
	}
	b, _ := json.Marshal(v)
	return b
}

// prefixColumns qualifies every column in a comma-separated list with a
// table alias, for joins that reuse the package's column list constants.
func prefixColumns(cols, alias string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
