package store

// sqliteSchema and postgresSchema differ only in key and float types.
// created_at holds unix seconds in both.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS articles (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    url_key               TEXT NOT NULL UNIQUE,
    url                   TEXT NOT NULL,
    title                 TEXT NOT NULL,
    description           TEXT,
    author                TEXT,
    published_at          TEXT,
    url_to_image          TEXT,
    content               TEXT,
    language              TEXT,
    source_id             TEXT,
    source_name           TEXT,
    api_source            TEXT,
    uplift_score          REAL DEFAULT 0,
    sentiment_positive    INTEGER DEFAULT 0,
    sentiment_negative    INTEGER DEFAULT 0,
    sentiment_neutral     INTEGER DEFAULT 0,
    sentiment_confidence  REAL DEFAULT 0,
    emotion_hope          REAL DEFAULT 0,
    emotion_awe           REAL DEFAULT 0,
    emotion_gratitude     REAL DEFAULT 0,
    emotion_compassion    REAL DEFAULT 0,
    emotion_relief        REAL DEFAULT 0,
    emotion_joy           REAL DEFAULT 0,
    source_credibility    TEXT,
    fact_checkable_claims TEXT,
    evidence_quality      TEXT,
    controversy_level     TEXT,
    solution_focused      TEXT,
    age_appropriate       TEXT,
    truth_seeking         TEXT,
    geographical_impact_level TEXT,
    reasoning             TEXT,
    analyzer_type         TEXT,
    overall_hopefulness   REAL DEFAULT 0,
    prompt_id             TEXT,
    prompt_name           TEXT,
    created_at            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS article_categories (
    article_id  INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
    PRIMARY KEY (article_id, category_id)
);

CREATE TABLE IF NOT EXISTS article_locations (
    article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    m49_code   INTEGER NOT NULL,
    PRIMARY KEY (article_id, m49_code)
);

CREATE INDEX IF NOT EXISTS idx_articles_created ON articles(created_at);
CREATE INDEX IF NOT EXISTS idx_articles_impact ON articles(geographical_impact_level);
CREATE INDEX IF NOT EXISTS idx_article_locations_code ON article_locations(m49_code);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS articles (
    id                    BIGSERIAL PRIMARY KEY,
    url_key               TEXT NOT NULL UNIQUE,
    url                   TEXT NOT NULL,
    title                 TEXT NOT NULL,
    description           TEXT,
    author                TEXT,
    published_at          TEXT,
    url_to_image          TEXT,
    content               TEXT,
    language              TEXT,
    source_id             TEXT,
    source_name           TEXT,
    api_source            TEXT,
    uplift_score          DOUBLE PRECISION DEFAULT 0,
    sentiment_positive    INTEGER DEFAULT 0,
    sentiment_negative    INTEGER DEFAULT 0,
    sentiment_neutral     INTEGER DEFAULT 0,
    sentiment_confidence  DOUBLE PRECISION DEFAULT 0,
    emotion_hope          DOUBLE PRECISION DEFAULT 0,
    emotion_awe           DOUBLE PRECISION DEFAULT 0,
    emotion_gratitude     DOUBLE PRECISION DEFAULT 0,
    emotion_compassion    DOUBLE PRECISION DEFAULT 0,
    emotion_relief        DOUBLE PRECISION DEFAULT 0,
    emotion_joy           DOUBLE PRECISION DEFAULT 0,
    source_credibility    TEXT,
    fact_checkable_claims TEXT,
    evidence_quality      TEXT,
    controversy_level     TEXT,
    solution_focused      TEXT,
    age_appropriate       TEXT,
    truth_seeking         TEXT,
    geographical_impact_level TEXT,
    reasoning             TEXT,
    analyzer_type         TEXT,
    overall_hopefulness   DOUBLE PRECISION DEFAULT 0,
    prompt_id             TEXT,
    prompt_name           TEXT,
    created_at            BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id   BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS article_categories (
    article_id  BIGINT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
    PRIMARY KEY (article_id, category_id)
);

CREATE TABLE IF NOT EXISTS article_locations (
    article_id BIGINT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    m49_code   INTEGER NOT NULL,
    PRIMARY KEY (article_id, m49_code)
);

CREATE INDEX IF NOT EXISTS idx_articles_created ON articles(created_at);
CREATE INDEX IF NOT EXISTS idx_articles_impact ON articles(geographical_impact_level);
CREATE INDEX IF NOT EXISTS idx_article_locations_code ON article_locations(m49_code);
`
