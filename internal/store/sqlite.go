// Package store persists campaign records: projects, accounts, posts
// and the post/account link table. Tool handlers and queue workers are
// its only consumers; each operation is its own transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/postpilot/postpilot/internal/domain"
)

// LinkMode selects how account links are attached to a post.
type LinkMode string

const (
	// LinkAppend unions the given accounts with the existing links.
	LinkAppend LinkMode = "append"
	// LinkReplace makes the given accounts the exact link set.
	LinkReplace LinkMode = "replace"
)

// Store is the SQLite-backed campaign record store.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates (or opens) the store under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "postpilot.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		user_id INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL,
		platform TEXT NOT NULL,
		user_id INTEGER NOT NULL DEFAULT 1,
		UNIQUE(handle, platform, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);

	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		caption TEXT NOT NULL,
		project_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		scheduled_at DATETIME,
		published_at DATETIME,
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);

	CREATE INDEX IF NOT EXISTS idx_posts_project ON posts(project_id);
	CREATE INDEX IF NOT EXISTS idx_posts_due ON posts(status, scheduled_at);

	CREATE TABLE IF NOT EXISTS post_accounts (
		post_id INTEGER NOT NULL,
		account_id INTEGER NOT NULL,
		PRIMARY KEY (post_id, account_id),
		FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE,
		FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Project operations

// CreateProject inserts a project and returns it with its assigned ID.
func (s *Store) CreateProject(ctx context.Context, name string, userID int64) (*domain.Project, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (name, user_id, created_at) VALUES (?, ?, ?)`,
		name, userID, now)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Project{ID: id, Name: name, UserID: userID, CreatedAt: now}, nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, user_id, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.UserID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// Account operations

// CreateAccount inserts a social account. The (handle, platform, user)
// triple is unique so duplicate tool calls upsert instead of piling up.
func (s *Store) CreateAccount(ctx context.Context, handle string, platform domain.Platform, userID int64) (*domain.Account, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (handle, platform, user_id) VALUES (?, ?, ?)
		 ON CONFLICT(handle, platform, user_id) DO UPDATE SET handle = excluded.handle`,
		handle, string(platform), userID)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Account{ID: id, Handle: handle, Platform: platform, UserID: userID}, nil
}

// ListAccounts returns all accounts belonging to a user.
func (s *Store) ListAccounts(ctx context.Context, userID int64) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, handle, platform, user_id FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		var platform string
		if err := rows.Scan(&a.ID, &a.Handle, &platform, &a.UserID); err != nil {
			return nil, err
		}
		a.Platform = domain.Platform(platform)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Post operations

// CreatePost inserts a draft post under a project.
func (s *Store) CreatePost(ctx context.Context, caption string, projectID int64) (*domain.Post, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (caption, project_id, status) VALUES (?, ?, ?)`,
		caption, projectID, string(domain.PostDraft))
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Post{ID: id, Caption: caption, ProjectID: projectID, Status: domain.PostDraft}, nil
}

// GetPost retrieves a post with its linked accounts.
func (s *Store) GetPost(ctx context.Context, id int64) (*domain.Post, error) {
	var p domain.Post
	var status string
	var scheduledAt, publishedAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, caption, project_id, status, scheduled_at, published_at FROM posts WHERE id = ?`, id).
		Scan(&p.ID, &p.Caption, &p.ProjectID, &status, &scheduledAt, &publishedAt)
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("post", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	p.Status = domain.PostStatus(status)
	if scheduledAt.Valid {
		t := scheduledAt.Time
		p.ScheduledAt = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}

	accounts, err := s.linkedAccounts(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Accounts = accounts
	return &p, nil
}

func (s *Store) linkedAccounts(ctx context.Context, postID int64) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.handle, a.platform, a.user_id
		FROM accounts a
		JOIN post_accounts pa ON pa.account_id = a.id
		WHERE pa.post_id = ?
		ORDER BY a.id`, postID)
	if err != nil {
		return nil, fmt.Errorf("linked accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		var platform string
		if err := rows.Scan(&a.ID, &a.Handle, &platform, &a.UserID); err != nil {
			return nil, err
		}
		a.Platform = domain.Platform(platform)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// LinkPostAccounts attaches accounts to a post. LinkAppend unions with
// the existing set; LinkReplace clears it first. Returns the post with
// the resulting link set.
func (s *Store) LinkPostAccounts(ctx context.Context, postID int64, accountIDs []int64, mode LinkMode) (*domain.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE id = ?`, postID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, NewNotFoundError("post", postID)
	}

	if mode == LinkReplace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM post_accounts WHERE post_id = ?`, postID); err != nil {
			return nil, fmt.Errorf("clear links: %w", err)
		}
	}

	for _, accountID := range accountIDs {
		var found int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ?`, accountID).Scan(&found); err != nil {
			return nil, err
		}
		if found == 0 {
			return nil, NewNotFoundError("account", accountID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO post_accounts (post_id, account_id) VALUES (?, ?)`,
			postID, accountID); err != nil {
			return nil, fmt.Errorf("link account: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetPost(ctx, postID)
}

// SchedulePost marks a post as scheduled for the given instant.
func (s *Store) SchedulePost(ctx context.Context, postID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET status = ?, scheduled_at = ? WHERE id = ?`,
		string(domain.PostScheduled), at.UTC(), postID)
	if err != nil {
		return fmt.Errorf("schedule post: %w", err)
	}
	return s.requireRow(res, "post", postID)
}

// MarkPublished records a post as published at the given instant.
// Publishing an already-published post is a no-op update, so duplicate
// queue deliveries cannot corrupt state.
func (s *Store) MarkPublished(ctx context.Context, postID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET status = ?, published_at = COALESCE(published_at, ?) WHERE id = ?`,
		string(domain.PostPublished), at.UTC(), postID)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return s.requireRow(res, "post", postID)
}

// DuePosts returns scheduled posts whose time has come.
func (s *Store) DuePosts(ctx context.Context, now time.Time) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, caption, project_id, status, scheduled_at
		FROM posts
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at`,
		string(domain.PostScheduled), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("due posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		var status string
		var scheduledAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.Caption, &p.ProjectID, &status, &scheduledAt); err != nil {
			return nil, err
		}
		p.Status = domain.PostStatus(status)
		if scheduledAt.Valid {
			t := scheduledAt.Time
			p.ScheduledAt = &t
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *Store) requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return NewNotFoundError(entity, id)
	}
	return nil
}
