package queue

// Schema for the shared upload store. Post and media operations share a
// single table; is_media selects the variant and the unused columns stay
// NULL-ish empty. Cross-process writers rely on WAL plus busy retry rather
// than row locks.
const schema = `
CREATE TABLE IF NOT EXISTS upload_operations (
    id              TEXT PRIMARY KEY,
    group_id        TEXT NOT NULL,
    site_id         INTEGER NOT NULL,
    is_media        INTEGER NOT NULL DEFAULT 0,
    status          TEXT NOT NULL DEFAULT 'pending',
    session_id      TEXT NOT NULL DEFAULT '',
    task_id         INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL,

    post_title      TEXT NOT NULL DEFAULT '',
    post_content    TEXT NOT NULL DEFAULT '',
    post_status     TEXT NOT NULL DEFAULT '',
    post_type       TEXT NOT NULL DEFAULT '',
    post_tags       TEXT NOT NULL DEFAULT '',
    post_categories TEXT NOT NULL DEFAULT '',
    remote_post_id  INTEGER NOT NULL DEFAULT 0,

    file_name       TEXT NOT NULL DEFAULT '',
    local_path      TEXT NOT NULL DEFAULT '',
    mime_type       TEXT NOT NULL DEFAULT '',
    remote_media_id INTEGER NOT NULL DEFAULT 0,
    remote_url      TEXT NOT NULL DEFAULT '',
    width           INTEGER NOT NULL DEFAULT 0,
    height          INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_upload_operations_group
    ON upload_operations (group_id);
CREATE INDEX IF NOT EXISTS idx_upload_operations_session
    ON upload_operations (session_id);
CREATE INDEX IF NOT EXISTS idx_upload_operations_status
    ON upload_operations (status);

CREATE TABLE IF NOT EXISTS notifications (
    id             TEXT PRIMARY KEY,
    category       TEXT NOT NULL,
    post_op_id     TEXT NOT NULL DEFAULT '',
    remote_post_id INTEGER NOT NULL DEFAULT 0,
    site_id        INTEGER NOT NULL DEFAULT 0,
    media_count    INTEGER NOT NULL DEFAULT 0,
    post_status    TEXT NOT NULL DEFAULT '',
    from_extension INTEGER NOT NULL DEFAULT 1,
    created_at     INTEGER NOT NULL
);
`
