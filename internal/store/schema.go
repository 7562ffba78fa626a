// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import "fmt"

// schemaSteps returns the ordered migrations for d. Times are unix seconds.
func schemaSteps(d Dialect) []string {
	identity := "INTEGER PRIMARY KEY"
	if d == DialectPostgres {
		identity = "INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	}

	return []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS channels (
	id %s,
	name TEXT NOT NULL UNIQUE,
	for_recorder INTEGER NOT NULL UNIQUE,
	for_syoboi INTEGER NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS programs (
	pid INTEGER PRIMARY KEY,
	tid INTEGER NOT NULL,
	start_time BIGINT NOT NULL,
	end_time BIGINT NOT NULL,
	channel_id INTEGER NOT NULL REFERENCES channels (id),
	count TEXT NOT NULL DEFAULT '',
	start_offset INTEGER NOT NULL DEFAULT 0,
	subtitle TEXT,
	title TEXT,
	comment TEXT
);
CREATE TABLE IF NOT EXISTS jobs (
	pid INTEGER PRIMARY KEY REFERENCES programs (pid),
	enqueued_at BIGINT NOT NULL,
	finished_at BIGINT,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_enqueued_at ON jobs (enqueued_at);
CREATE TABLE IF NOT EXISTS tracking_titles (
	tid INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	created_at BIGINT NOT NULL
);`, identity),
	}
}
