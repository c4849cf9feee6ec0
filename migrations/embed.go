// Package migrations embeds the schema for the three relay tables
// (installations, channel_bindings, inbound_events). Files apply in
// numeric order; each is idempotent so re-running the set is safe.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
