package linkmon

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/linkpulse/pkg/plugin"
)

// Compile-time interface guard.
var _ LedgerStore = (*SQLiteLedgerStore)(nil)

// SQLiteLedgerStore keeps the ledger in the shared SQLite database.
type SQLiteLedgerStore struct {
	store plugin.Store
}

// NewSQLiteLedgerStore runs the linkmon migrations and returns a store
// on the shared database.
func NewSQLiteLedgerStore(ctx context.Context, store plugin.Store) (*SQLiteLedgerStore, error) {
	if err := store.Migrate(ctx, "linkmon", migrations()); err != nil {
		return nil, fmt.Errorf("linkmon migrations: %w", err)
	}
	return &SQLiteLedgerStore{store: store}, nil
}

// Load reads every open outage.
func (s *SQLiteLedgerStore) Load(ctx context.Context) (Ledger, error) {
	rows, err := s.store.DB().QueryContext(ctx,
		"SELECT unit, provider, since FROM linkmon_outages")
	if err != nil {
		return NewLedger(), fmt.Errorf("query outages: %w", err)
	}
	defer rows.Close()

	l := NewLedger()
	for rows.Next() {
		var unit, provider, since string
		if err := rows.Scan(&unit, &provider, &since); err != nil {
			return NewLedger(), fmt.Errorf("scan outage: %w", err)
		}
		t, err := time.ParseInLocation(SinceLayout, since, time.Local)
		if err != nil {
			return NewLedger(), fmt.Errorf("parse outage start %q for %s-%s: %w", since, unit, provider, err)
		}
		l.Put(unit, provider, Outage{Since: t})
	}
	if err := rows.Err(); err != nil {
		return NewLedger(), fmt.Errorf("iterate outages: %w", err)
	}
	return l, nil
}

// Save replaces the table contents with l in one transaction.
func (s *SQLiteLedgerStore) Save(ctx context.Context, l Ledger) error {
	return s.store.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM linkmon_outages"); err != nil {
			return fmt.Errorf("clear outages: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO linkmon_outages (unit, provider, since) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare outage insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range l.Entries() {
			if _, err := stmt.ExecContext(ctx, e.Unit, e.Provider, e.SinceText()); err != nil {
				return fmt.Errorf("insert outage %s-%s: %w", e.Unit, e.Provider, err)
			}
		}
		return nil
	})
}

// Ping reports whether the database answers.
func (s *SQLiteLedgerStore) Ping(ctx context.Context) error {
	return s.store.DB().PingContext(ctx)
}
