// Package catalog provides SQLite persistence for ingested course records.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mokuji/internal/models"
)

// Store persists Course records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		sco_count INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		enrichment TEXT,
		source_file TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_courses_created_at ON courses(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveCourse inserts a course record.
func (s *Store) SaveCourse(ctx context.Context, course *models.Course) error {
	enrichmentJSON, err := json.Marshal(course.Enrichment)
	if err != nil {
		return fmt.Errorf("failed to marshal enrichment: %w", err)
	}

	now := time.Now()
	course.CreatedAt = now
	course.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO courses (id, title, sco_count, content, enrichment, source_file, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		course.ID, course.Title, course.SCOCount, course.Content, string(enrichmentJSON),
		course.SourceFile, course.CreatedAt, course.UpdatedAt,
	)
	return err
}

// GetCourse returns a course by ID.
func (s *Store) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	var enrichmentJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, sco_count, content, enrichment, source_file, created_at, updated_at
		 FROM courses WHERE id = ?`, id,
	).Scan(&course.ID, &course.Title, &course.SCOCount, &course.Content,
		&enrichmentJSON, &course.SourceFile, &course.CreatedAt, &course.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("course not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	if enrichmentJSON != "" && enrichmentJSON != "null" {
		if err := json.Unmarshal([]byte(enrichmentJSON), &course.Enrichment); err != nil {
			return nil, fmt.Errorf("failed to unmarshal enrichment: %w", err)
		}
	}

	return &course, nil
}

// ListCourses returns up to limit courses, newest first. Content is omitted
// from listings to keep responses small.
func (s *Store) ListCourses(ctx context.Context, limit int) ([]*models.Course, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, sco_count, source_file, created_at, updated_at
		 FROM courses ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		var course models.Course
		if err := rows.Scan(&course.ID, &course.Title, &course.SCOCount,
			&course.SourceFile, &course.CreatedAt, &course.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, &course)
	}
	return courses, rows.Err()
}

// DeleteCourse removes a course by ID. Returns an error when no row matched.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("course not found: %s", id)
	}
	return nil
}

// CountCourses returns the number of stored courses.
func (s *Store) CountCourses(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&count)
	return count, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
