package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/docpath"
)

// Set maps docpath strings to the values they should hold.
type Set map[string]any

// Patch is a set of field updates to one document.
type Patch struct {
	ID           string
	Set          Set
	IfRevisionID string
}

// MutationResult describes a committed transaction.
type MutationResult struct {
	TransactionID string
	DocumentIDs   []string
	Revisions     map[string]string
}

// Mutator applies patches atomically.
type Mutator interface {
	Mutate(ctx context.Context, patches ...Patch) (*MutationResult, error)
}

var reservedFields = map[string]struct{}{
	"_id":        {},
	"_type":      {},
	"_rev":       {},
	"_updatedAt": {},
}

// Mutate applies all patches inside one SQL transaction. Either every
// patch is committed or none is.
func (db *DB) Mutate(ctx context.Context, patches ...Patch) (*MutationResult, error) {
	res := &MutationResult{
		TransactionID: uuid.NewString(),
		Revisions:     make(map[string]string),
	}
	if len(patches) == 0 {
		return res, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	bodies := make(map[string][]byte, len(patches))
	for _, p := range patches {
		body, loaded := bodies[p.ID]
		if !loaded {
			var rev string
			err := tx.QueryRowContext(ctx, `SELECT body, rev FROM documents WHERE id = ?`, p.ID).Scan(&body, &rev)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("docstore: patch %s: %w", p.ID, apperr.ErrNotFound)
			}
			if err != nil {
				return nil, fmt.Errorf("docstore: patch %s: %w", p.ID, err)
			}
			if p.IfRevisionID != "" && p.IfRevisionID != rev {
				return nil, fmt.Errorf("docstore: patch %s: %w", p.ID, apperr.ErrConflict)
			}
			res.DocumentIDs = append(res.DocumentIDs, p.ID)
		}
		body, err = applySet(body, p.Set)
		if err != nil {
			return nil, fmt.Errorf("docstore: patch %s: %w", p.ID, err)
		}
		bodies[p.ID] = body
	}

	now := time.Now().UTC()
	for _, id := range res.DocumentIDs {
		body := bodies[id]
		rev := checksum.Revision(body)
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET body = ?, rev = ?, updated_at = ? WHERE id = ?`,
			string(body), rev, now, id); err != nil {
			return nil, fmt.Errorf("docstore: update %s: %w", id, err)
		}
		if err := ftsUpsert(ctx, tx, id, body); err != nil {
			return nil, err
		}
		res.Revisions[id] = rev
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("docstore: commit: %w", err)
	}

	for _, id := range res.DocumentIDs {
		db.notify("updated", id)
	}
	return res, nil
}

// applySet applies set to body in sorted path order.
func applySet(body []byte, set Set) ([]byte, error) {
	paths := make([]string, 0, len(set))
	for k := range set {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	for _, raw := range paths {
		p, err := docpath.Parse(raw)
		if err != nil {
			return nil, err
		}
		if len(p) == 1 {
			if _, ok := reservedFields[p[0].Field]; ok {
				return nil, fmt.Errorf("%w: %s is read-only", apperr.ErrInvalid, raw)
			}
		}
		resolved, err := p.Resolve(body)
		if err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, resolved, set[raw]); err != nil {
			return nil, fmt.Errorf("set %s: %w", raw, err)
		}
	}
	return body, nil
}

// Transaction collects patches and commits them atomically.
type Transaction struct {
	m       Mutator
	patches []Patch
}

// NewTransaction starts a transaction against m.
func NewTransaction(m Mutator) *Transaction {
	return &Transaction{m: m}
}

// Transaction starts a transaction against db.
func (db *DB) Transaction() *Transaction {
	return NewTransaction(db)
}

// Patch queues field updates for document id.
func (t *Transaction) Patch(id string, set Set) *Transaction {
	t.patches = append(t.patches, Patch{ID: id, Set: set})
	return t
}

// PatchIfRevision queues field updates that only apply at revision rev.
func (t *Transaction) PatchIfRevision(id, rev string, set Set) *Transaction {
	t.patches = append(t.patches, Patch{ID: id, Set: set, IfRevisionID: rev})
	return t
}

// Len returns the number of queued patches.
func (t *Transaction) Len() int {
	return len(t.patches)
}

// Commit applies every queued patch in one atomic mutation.
func (t *Transaction) Commit(ctx context.Context) (*MutationResult, error) {
	return t.m.Mutate(ctx, t.patches...)
}
