package linkmon

import (
	"database/sql"

	"github.com/HerbHall/linkpulse/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create linkmon outage ledger",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS linkmon_outages (
					unit     TEXT NOT NULL,
					provider TEXT NOT NULL,
					since    TEXT NOT NULL,
					PRIMARY KEY (unit, provider)
				)`)
				return err
			},
		},
	}
}
