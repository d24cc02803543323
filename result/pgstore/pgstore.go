// Package pgstore persists result.Reports to a Postgres/CockroachDB
// instance, grounded on Chapter06/linkgraph/store/cdb.CockroachDBGraph's
// database/sql + lib/pq usage: a thin struct wrapping *sql.DB, one query
// per operation, xerrors-wrapped sentinel errors for not-found lookups.
package pgstore

import (
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"golang.org/x/xerrors"

	"github.com/hlscosim/cosim/result"
	"github.com/hlscosim/cosim/trace"
)

var (
	upsertRunQuery = `
INSERT INTO runs (id, top_name, start_cycle, end_cycle, observed_fifo_depths)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
  top_name=$2, start_cycle=$3, end_cycle=$4, observed_fifo_depths=$5
`
	findRunQuery = "SELECT top_name, start_cycle, end_cycle, observed_fifo_depths FROM runs WHERE id=$1"

	// ErrNotFound is returned by Find when no run exists for the given ID.
	ErrNotFound = xerrors.New("run not found")
)

// Store persists result.Reports keyed by run ID to a Postgres-compatible
// database. The top module's children are not flattened into rows: a run's
// full call tree is round-tripped through a single JSON column, since the
// store's job is archival lookup by run ID, not queries over nested calls.
type Store struct {
	db *sql.DB
}

// Open connects to the Postgres/CockroachDB instance identified by dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, xerrors.Errorf("open pgstore: %w", err)
	}
	return &Store{db: db}, nil
}

// Close terminates the connection to the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}

// row is the on-disk shape of one run: the flattened top-level interval plus
// the full call tree and FIFO depths, both marshaled to JSON.
type row struct {
	TopName            string
	StartCycle         int
	EndCycle           int
	Tree               *result.ModuleInterval
	ObservedFifoDepths map[int]int
}

// Save upserts report under runID, creating or overwriting a prior save
// for the same run.
func (s *Store) Save(runID uuid.UUID, report *result.Report) error {
	r := toRow(report)
	treeJSON, err := json.Marshal(r.Tree)
	if err != nil {
		return xerrors.Errorf("save run %s: marshal tree: %w", runID, err)
	}
	depthsJSON, err := json.Marshal(r.ObservedFifoDepths)
	if err != nil {
		return xerrors.Errorf("save run %s: marshal fifo depths: %w", runID, err)
	}

	combined, err := json.Marshal(struct {
		Tree               json.RawMessage `json:"tree"`
		ObservedFifoDepths json.RawMessage `json:"observed_fifo_depths"`
	}{treeJSON, depthsJSON})
	if err != nil {
		return xerrors.Errorf("save run %s: marshal payload: %w", runID, err)
	}

	_, err = s.db.Exec(upsertRunQuery, runID, r.TopName, r.StartCycle, r.EndCycle, combined)
	if err != nil {
		return xerrors.Errorf("save run %s: %w", runID, err)
	}
	return nil
}

// Find looks up a previously saved report by run ID.
func (s *Store) Find(runID uuid.UUID) (*result.Report, error) {
	var (
		topName  string
		combined []byte
		startCyc int
		endCyc   int
	)
	dbRow := s.db.QueryRow(findRunQuery, runID)
	if err := dbRow.Scan(&topName, &startCyc, &endCyc, &combined); err != nil {
		if err == sql.ErrNoRows {
			return nil, xerrors.Errorf("find run %s: %w", runID, ErrNotFound)
		}
		return nil, xerrors.Errorf("find run %s: %w", runID, err)
	}

	var payload struct {
		Tree               *result.ModuleInterval `json:"tree"`
		ObservedFifoDepths map[int]int            `json:"observed_fifo_depths"`
	}
	if err := json.Unmarshal(combined, &payload); err != nil {
		return nil, xerrors.Errorf("find run %s: unmarshal payload: %w", runID, err)
	}

	depths := make(map[trace.StreamID]int, len(payload.ObservedFifoDepths))
	for id, depth := range payload.ObservedFifoDepths {
		depths[trace.StreamID(id)] = depth
	}

	return &result.Report{
		Top:                payload.Tree,
		ObservedFifoDepths: depths,
	}, nil
}

func toRow(report *result.Report) row {
	depths := make(map[int]int, len(report.ObservedFifoDepths))
	for id, depth := range report.ObservedFifoDepths {
		depths[int(id)] = depth
	}
	return row{
		TopName:            report.Top.Name,
		StartCycle:         report.Top.StartCycle,
		EndCycle:           report.Top.EndCycle,
		Tree:               report.Top,
		ObservedFifoDepths: depths,
	}
}
