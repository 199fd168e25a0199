// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/autocat/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS series (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		current_version_id TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS series_versions (
		id TEXT PRIMARY KEY,
		series_id TEXT NOT NULL,
		v INTEGER NOT NULL,
		base_prompt_blob TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (series_id) REFERENCES series(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		series_id TEXT,
		media_type TEXT NOT NULL DEFAULT 'image',
		media_path TEXT NOT NULL DEFAULT '',
		thumb_path TEXT NOT NULL DEFAULT '',
		poster_path TEXT,
		category_id TEXT NOT NULL,
		auto_category_id TEXT,
		auto_confidence REAL,
		auto_candidates_json TEXT,
		is_category_locked INTEGER NOT NULL DEFAULT 0,
		current_version_id TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (category_id) REFERENCES categories(id)
	);

	CREATE INDEX IF NOT EXISTS idx_items_category_created ON items(category_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at);
	CREATE INDEX IF NOT EXISTS idx_items_auto_category ON items(auto_category_id);
	CREATE INDEX IF NOT EXISTS idx_items_locked ON items(is_category_locked);

	CREATE TABLE IF NOT EXISTS item_versions (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		v INTEGER NOT NULL,
		prompt_blob TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_item_versions_item ON item_versions(item_id, v);

	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS item_tags (
		item_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (item_id, tag_id),
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS item_embeddings (
		item_id TEXT NOT NULL,
		model_key TEXT NOT NULL,
		dim INTEGER NOT NULL,
		vector_blob BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (item_id, model_key),
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS category_embeddings (
		category_id TEXT NOT NULL,
		model_key TEXT NOT NULL,
		dim INTEGER NOT NULL,
		vector_blob BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (category_id, model_key),
		FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// NewID returns a new row id (uppercase UUID hex without dashes).
func NewID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// CreateCategory inserts a category. An empty ID is generated.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, c *models.Category) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, sort_order, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.SortOrder, c.IsActive, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create category %q: %w", c.Name, err)
	}
	return nil
}

const categoryColumns = `id, name, sort_order, is_active, created_at`

func scanCategory(row interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.SortOrder, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCategory returns a category by ID.
func (s *SQLiteStorage) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return c, err
}

// GetCategoryByName returns a category by its unique name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	return c, err
}

// ListActiveCategories returns active categories ordered by sort order, then name.
func (s *SQLiteStorage) ListActiveCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE is_active = 1 ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EnsureUncategorized returns the Uncategorized sentinel, creating it if missing.
func (s *SQLiteStorage) EnsureUncategorized(ctx context.Context) (*models.Category, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (id, name, sort_order, is_active, created_at) VALUES (?, ?, 0, 1, ?)`,
		NewID(), models.UncategorizedName, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure uncategorized: %w", err)
	}
	return s.GetCategoryByName(ctx, models.UncategorizedName)
}

const itemColumns = `id, title, series_id, media_type, media_path, thumb_path, poster_path, category_id,
	auto_category_id, auto_confidence, auto_candidates_json, is_category_locked, current_version_id,
	is_deleted, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*models.Item, error) {
	var (
		it                              models.Item
		seriesID, posterPath, versionID sql.NullString
		autoCategoryID, autoCandidates  sql.NullString
		autoConfidence                  sql.NullFloat64
	)
	err := row.Scan(&it.ID, &it.Title, &seriesID, &it.MediaType, &it.MediaPath, &it.ThumbPath, &posterPath,
		&it.CategoryID, &autoCategoryID, &autoConfidence, &autoCandidates, &it.IsCategoryLocked, &versionID,
		&it.IsDeleted, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.SeriesID = seriesID.String
	it.PosterPath = posterPath.String
	it.CurrentVersionID = versionID.String
	if autoCategoryID.Valid {
		it.AutoCategoryID = &autoCategoryID.String
	}
	if autoConfidence.Valid {
		it.AutoConfidence = &autoConfidence.Float64
	}
	if autoCandidates.Valid {
		it.AutoCandidates = &autoCandidates.String
	}
	return &it, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateItem inserts an item. An empty ID is generated; zero timestamps are set to now.
func (s *SQLiteStorage) CreateItem(ctx context.Context, it *models.Item) error {
	if it.ID == "" {
		it.ID = NewID()
	}
	if it.MediaType == "" {
		it.MediaType = models.MediaTypeImage
	}
	now := time.Now()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = it.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, title, series_id, media_type, media_path, thumb_path, poster_path, category_id,
			auto_category_id, auto_confidence, auto_candidates_json, is_category_locked, current_version_id,
			is_deleted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Title, nullString(it.SeriesID), it.MediaType, it.MediaPath, it.ThumbPath, nullString(it.PosterPath),
		it.CategoryID, it.AutoCategoryID, it.AutoConfidence, it.AutoCandidates, it.IsCategoryLocked,
		nullString(it.CurrentVersionID), it.IsDeleted, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// GetItem returns an item by ID, including soft-deleted ones.
func (s *SQLiteStorage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return it, err
}

// ListItems returns up to limit items, newest first.
func (s *SQLiteStorage) ListItems(ctx context.Context, limit int, includeDeleted bool) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	if !includeDeleted {
		query += ` WHERE is_deleted = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListCategoryItemIDs returns up to limit ids of items labeled with categoryID, newest first.
func (s *SQLiteStorage) ListCategoryItemIDs(ctx context.Context, categoryID string, limit int, includeDeleted bool) ([]string, error) {
	query := `SELECT id FROM items WHERE category_id = ?`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, categoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetItemText collects the title, tags, latest prompt, and series context of an item.
func (s *SQLiteStorage) GetItemText(ctx context.Context, id string) (*models.ItemText, error) {
	var (
		text     models.ItemText
		seriesID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT title, series_id FROM items WHERE id = ?`, id).Scan(&text.Title, &seriesID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT t.name FROM item_tags it JOIN tags t ON t.id = it.tag_id WHERE it.item_id = ? ORDER BY t.name`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		text.Tags = append(text.Tags, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT prompt_blob FROM item_versions WHERE item_id = ? ORDER BY v DESC LIMIT 1`, id).Scan(&text.Prompt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if seriesID.Valid {
		var versionID sql.NullString
		err = s.db.QueryRowContext(ctx,
			`SELECT name, current_version_id FROM series WHERE id = ?`, seriesID.String).Scan(&text.SeriesName, &versionID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if versionID.Valid {
			err = s.db.QueryRowContext(ctx,
				`SELECT base_prompt_blob FROM series_versions WHERE id = ?`, versionID.String).Scan(&text.SeriesPrompt)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
		}
	}
	return &text, nil
}

// AddItemVersion appends a prompt version to an item and makes it current.
func (s *SQLiteStorage) AddItemVersion(ctx context.Context, itemID, prompt string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(v), 0) + 1 FROM item_versions WHERE item_id = ?`, itemID).Scan(&next); err != nil {
		return "", err
	}
	id := NewID()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO item_versions (id, item_id, v, prompt_blob, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, itemID, next, prompt, time.Now()); err != nil {
		return "", fmt.Errorf("failed to insert item version: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE items SET current_version_id = ? WHERE id = ?`, id, itemID)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return id, tx.Commit()
}

// SetItemTags replaces the tags of an item, creating unknown tags.
func (s *SQLiteStorage) SetItemTags(ctx context.Context, itemID string, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id = ?`, itemID); err != nil {
		return err
	}
	now := time.Now()
	for _, name := range tags {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (id, name, created_at) VALUES (?, ?, ?)`, NewID(), name, now); err != nil {
			return fmt.Errorf("failed to upsert tag %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_tags (item_id, tag_id, created_at)
			 SELECT ?, id, ? FROM tags WHERE name = ?`, itemID, now, name); err != nil {
			return fmt.Errorf("failed to link tag %q: %w", name, err)
		}
	}
	return tx.Commit()
}

// SetItemCategory sets the effective category of an item. When lock is true the item is
// also category-locked.
func (s *SQLiteStorage) SetItemCategory(ctx context.Context, itemID, categoryID string, lock bool) error {
	if _, err := s.GetCategory(ctx, categoryID); err != nil {
		return err
	}
	query := `UPDATE items SET category_id = ?, updated_at = ?`
	if lock {
		query += `, is_category_locked = 1`
	}
	query += ` WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, categoryID, time.Now(), itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// SetItemLock sets or clears the category lock of an item.
func (s *SQLiteStorage) SetItemLock(ctx context.Context, itemID string, locked bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET is_category_locked = ?, updated_at = ? WHERE id = ?`, locked, time.Now(), itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// ApplyClassifications persists classification outcomes in one transaction. Auto fields are
// always written; category_id only when the update carries one.
func (s *SQLiteStorage) ApplyClassifications(ctx context.Context, updates []models.ClassificationUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE items SET auto_category_id = ?, auto_confidence = ?, auto_candidates_json = ?,
			category_id = COALESCE(NULLIF(?, ''), category_id), updated_at = ?
		 WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx,
			u.AutoCategoryID, u.AutoConfidence, u.AutoCandidates, u.CategoryID, now, u.ItemID); err != nil {
			return fmt.Errorf("failed to apply classification to %s: %w", u.ItemID, err)
		}
	}
	return tx.Commit()
}

// CreateSeries inserts a series and, when basePrompt is set, its first version.
func (s *SQLiteStorage) CreateSeries(ctx context.Context, sr *models.Series, basePrompt string) error {
	if sr.ID == "" {
		sr.ID = NewID()
	}
	if sr.CreatedAt.IsZero() {
		sr.CreatedAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO series (id, name, is_deleted, created_at) VALUES (?, ?, ?, ?)`,
		sr.ID, sr.Name, sr.IsDeleted, sr.CreatedAt); err != nil {
		return fmt.Errorf("failed to create series %q: %w", sr.Name, err)
	}
	if basePrompt != "" {
		versionID := NewID()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO series_versions (id, series_id, v, base_prompt_blob, created_at) VALUES (?, ?, 1, ?, ?)`,
			versionID, sr.ID, basePrompt, sr.CreatedAt); err != nil {
			return fmt.Errorf("failed to create series version: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE series SET current_version_id = ? WHERE id = ?`, versionID, sr.ID); err != nil {
			return err
		}
		sr.CurrentVersionID = versionID
	}
	return tx.Commit()
}

// GetItemEmbedding returns the stored embedding of an item for modelKey. An empty modelKey
// matches the most recent embedding of any model.
func (s *SQLiteStorage) GetItemEmbedding(ctx context.Context, itemID, modelKey string) (*models.Embedding, error) {
	query := `SELECT item_id, model_key, dim, vector_blob, created_at FROM item_embeddings WHERE item_id = ?`
	args := []any{itemID}
	if modelKey != "" {
		query += ` AND model_key = ?`
		args = append(args, modelKey)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	var e models.Embedding
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&e.OwnerID, &e.ModelKey, &e.Dim, &e.Blob, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("embedding for item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PutItemEmbedding stores (or replaces) the embedding of an item.
func (s *SQLiteStorage) PutItemEmbedding(ctx context.Context, e *models.Embedding) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item_embeddings (item_id, model_key, dim, vector_blob, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(item_id, model_key) DO UPDATE SET dim = excluded.dim, vector_blob = excluded.vector_blob,
			created_at = excluded.created_at`,
		e.OwnerID, e.ModelKey, e.Dim, e.Blob, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store item embedding: %w", err)
	}
	return nil
}

// ListCategoryEmbeddings returns the stored category-name embeddings for modelKey.
func (s *SQLiteStorage) ListCategoryEmbeddings(ctx context.Context, modelKey string) ([]*models.Embedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category_id, model_key, dim, vector_blob, updated_at FROM category_embeddings WHERE model_key = ?`, modelKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Embedding
	for rows.Next() {
		var e models.Embedding
		if err := rows.Scan(&e.OwnerID, &e.ModelKey, &e.Dim, &e.Blob, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// PutCategoryEmbedding stores (or replaces) the name embedding of a category.
func (s *SQLiteStorage) PutCategoryEmbedding(ctx context.Context, e *models.Embedding) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO category_embeddings (category_id, model_key, dim, vector_blob, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(category_id, model_key) DO UPDATE SET dim = excluded.dim, vector_blob = excluded.vector_blob,
			updated_at = excluded.updated_at`,
		e.OwnerID, e.ModelKey, e.Dim, e.Blob, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store category embedding: %w", err)
	}
	return nil
}

// CountItems returns the number of items that are not soft-deleted.
func (s *SQLiteStorage) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE is_deleted = 0`).Scan(&n)
	return n, err
}

// CountCategories returns the number of active categories.
func (s *SQLiteStorage) CountCategories(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE is_active = 1`).Scan(&n)
	return n, err
}

// CountItemEmbeddings returns the number of stored item embeddings for modelKey.
func (s *SQLiteStorage) CountItemEmbeddings(ctx context.Context, modelKey string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM item_embeddings WHERE model_key = ?`, modelKey).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
