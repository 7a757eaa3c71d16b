// Package remote provides the server-side counterparts the sync processor
// delivers to: a REST client, a direct Postgres writer, and a gin server
// exposing the same REST routes over a local store.
//
// Every implementation treats insert of an existing id as an upsert, so a
// queue entry replayed after a lost acknowledgement never duplicates a row.
package remote

import (
	"fmt"

	"github.com/roach88/kasir/internal/domain"
)

func checkTable(table string) error {
	if !domain.IsCollection(table) {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}
