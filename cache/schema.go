// cache/schema.go
package cache

const Schema = `
CREATE TABLE IF NOT EXISTS hours (
	instrument TEXT NOT NULL,
	hour INTEGER NOT NULL,
	data BLOB,
	fetched_at DATETIME NOT NULL,
	PRIMARY KEY (instrument, hour)
);

CREATE TABLE IF NOT EXISTS fetches (
	run_id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	from_time DATETIME NOT NULL,
	to_time DATETIME NOT NULL,
	timeframe TEXT NOT NULL,
	format TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetches_instrument ON fetches(instrument, created_at);
`
