package store

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
    id                TEXT PRIMARY KEY,
    video_id          TEXT NOT NULL,
    title             TEXT NOT NULL DEFAULT '',
    thumbnail_url     TEXT NOT NULL DEFAULT '',
    rating            REAL NOT NULL,
    compound_mean     REAL NOT NULL,
    positive_mean     REAL NOT NULL,
    negative_mean     REAL NOT NULL,
    comment_count     INTEGER NOT NULL DEFAULT 0,
    opinionated_count INTEGER NOT NULL DEFAULT 0,
    analyzed_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_video ON analyses(video_id);
CREATE INDEX IF NOT EXISTS idx_analyses_analyzed_at ON analyses(analyzed_at);

CREATE TABLE IF NOT EXISTS comment_scores (
    analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    author      TEXT NOT NULL DEFAULT '',
    like_count  INTEGER NOT NULL DEFAULT 0,
    text        TEXT NOT NULL DEFAULT '',
    neg         REAL NOT NULL,
    neu         REAL NOT NULL,
    pos         REAL NOT NULL,
    compound    REAL NOT NULL,
    PRIMARY KEY (analysis_id, position)
);
`
