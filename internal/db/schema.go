package db

// CurrentSchemaVersion is the latest schema version.
const CurrentSchemaVersion = 1

// migrations[i] upgrades the schema from version i to i+1. Statements are
// portable between SQLite and Postgres: timestamps are unix milliseconds,
// booleans are 0/1 integers.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS relationships (
		  id                TEXT PRIMARY KEY,
		  name              TEXT NOT NULL,
		  level             INTEGER NOT NULL DEFAULT 1 CHECK (level BETWEEN 1 AND 10),
		  xp                INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
		  reminder_interval TEXT,
		  photo_url         TEXT,
		  tags_json         TEXT,
		  version           BIGINT NOT NULL DEFAULT 1,
		  created_at        BIGINT NOT NULL,
		  updated_at        BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_created
		 ON relationships(created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS categories (
		  id         TEXT PRIMARY KEY,
		  name       TEXT NOT NULL,
		  name_norm  TEXT NOT NULL UNIQUE,
		  created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS relationship_categories (
		  relationship_id TEXT NOT NULL REFERENCES relationships(id) ON DELETE CASCADE,
		  category_id     TEXT NOT NULL REFERENCES categories(id),
		  position        INTEGER NOT NULL,
		  created_at      BIGINT NOT NULL,
		  PRIMARY KEY (relationship_id, category_id)
		)`,

		`CREATE TABLE IF NOT EXISTS category_history (
		  id              TEXT PRIMARY KEY,
		  relationship_id TEXT NOT NULL REFERENCES relationships(id) ON DELETE CASCADE,
		  category        TEXT NOT NULL,
		  change_type     TEXT NOT NULL CHECK (change_type IN ('added', 'removed')),
		  user_confirmed  INTEGER NOT NULL DEFAULT 0,
		  created_at      BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_category_history_rel
		 ON category_history(relationship_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS interactions (
		  id                     TEXT PRIMARY KEY,
		  relationship_id        TEXT NOT NULL REFERENCES relationships(id) ON DELETE CASCADE,
		  interaction_log        TEXT NOT NULL,
		  tone_tag               TEXT,
		  sentiment              TEXT,
		  xp_gain                INTEGER,
		  reasoning              TEXT,
		  patterns               TEXT,
		  evolution_suggestion   TEXT,
		  interaction_suggestion TEXT,
		  classifier_fallback    INTEGER NOT NULL DEFAULT 0,
		  classified_at          BIGINT,
		  is_milestone           INTEGER NOT NULL DEFAULT 0,
		  created_at             BIGINT NOT NULL,
		  updated_at             BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_rel_created
		 ON interactions(relationship_id, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS quests (
		  id              TEXT PRIMARY KEY,
		  relationship_id TEXT NOT NULL REFERENCES relationships(id) ON DELETE CASCADE,
		  description     TEXT NOT NULL,
		  status          TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
		  milestone_level INTEGER,
		  created_at      BIGINT NOT NULL,
		  completed_at    BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quests_rel_status
		 ON quests(relationship_id, status)`,

		`CREATE TABLE IF NOT EXISTS level_history (
		  id              TEXT PRIMARY KEY,
		  relationship_id TEXT NOT NULL REFERENCES relationships(id) ON DELETE CASCADE,
		  old_level       INTEGER NOT NULL,
		  new_level       INTEGER NOT NULL,
		  xp_gained       INTEGER NOT NULL,
		  interaction_id  TEXT,
		  created_at      BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_level_history_rel
		 ON level_history(relationship_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS insights (
		  relationship_id TEXT PRIMARY KEY REFERENCES relationships(id) ON DELETE CASCADE,
		  payload_json    TEXT NOT NULL,
		  generated_at    BIGINT NOT NULL
		)`,
	},
}
