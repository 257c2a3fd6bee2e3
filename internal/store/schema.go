package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS instructions (
    id                   INTEGER PRIMARY KEY CHECK (id = 1),
    text                 TEXT NOT NULL,
    updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    session_id           TEXT PRIMARY KEY,
    mode                 TEXT NOT NULL,
    model                TEXT NOT NULL,
    started_at           TEXT NOT NULL,
    ended_at             TEXT,
    cost                 REAL NOT NULL DEFAULT 0,
    tokens               INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS session_tokens (
    session_id           TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
    category             TEXT NOT NULL,
    tokens               INTEGER NOT NULL,
    PRIMARY KEY (session_id, category)
);

CREATE TABLE IF NOT EXISTS diagrams (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id           TEXT,
    kind                 TEXT NOT NULL,
    source               TEXT NOT NULL,
    created_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_diagrams_created ON diagrams(created_at);
`
