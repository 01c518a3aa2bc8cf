// Package store is a SQLite implementation of the holdings API, used when no
// remote holdings service is configured.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/services"
)

// Store implements services.HoldingsAPI on a migrated database.
type Store struct {
	db *sql.DB
}

var _ services.HoldingsAPI = (*Store)(nil)

// New marks systemTags as system tags, creating them when missing.
func New(ctx context.Context, db *sql.DB, systemTags []string) (*Store, error) {
	s := &Store{db: db}
	for _, name := range systemTags {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO tags (name, is_system) VALUES (?, 1)
			ON CONFLICT(name) DO UPDATE SET is_system = 1`, name)
		if err != nil {
			return nil, fmt.Errorf("seed system tag %q: %w", name, err)
		}
	}
	return s, nil
}

// inClause returns "(?,?,...)" for n arguments.
func inClause(n int) string {
	return "(?" + strings.Repeat(",?", n-1) + ")"
}

func (s *Store) FetchTags(ctx context.Context) (models.TagCatalog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, is_system FROM tags ORDER BY name`)
	if err != nil {
		return models.TagCatalog{}, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	c := models.TagCatalog{All: []models.TagName{}, Custom: []models.TagName{}}
	for rows.Next() {
		var name string
		var system bool
		if err := rows.Scan(&name, &system); err != nil {
			return models.TagCatalog{}, err
		}
		c.All = append(c.All, models.TagName(name))
		if !system {
			c.Custom = append(c.Custom, models.TagName(name))
		}
	}
	return c, rows.Err()
}

func (s *Store) CreateTagRemote(ctx context.Context, name models.TagName) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO tags (name, is_system) VALUES (?, 0) ON CONFLICT(name) DO NOTHING`, string(name))
	if err != nil {
		return fmt.Errorf("insert tag %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.ErrTagExists
	}
	return nil
}

// DeleteTagRemote deletes a custom tag and every attachment of it in one
// transaction.
func (s *Store) DeleteTagRemote(ctx context.Context, name models.TagName) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var system bool
	err = tx.QueryRowContext(ctx, `SELECT is_system FROM tags WHERE name = ?`, string(name)).Scan(&system)
	if errors.Is(err, sql.ErrNoRows) {
		return services.ErrTagNotFound
	}
	if err != nil {
		return fmt.Errorf("look up tag %q: %w", name, err)
	}
	if system {
		return services.ErrTagProtected
	}

	for _, q := range []string{
		`DELETE FROM holding_tags WHERE tag_name = ?`,
		`DELETE FROM operation_tags WHERE tag_name = ?`,
		`DELETE FROM tags WHERE name = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, string(name)); err != nil {
			return fmt.Errorf("delete tag %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Tag deleted from store", "tag", name)
	return nil
}

// ensureTags creates the missing names of tags as custom tags.
func ensureTags(ctx context.Context, tx *sql.Tx, tags []string) error {
	for _, t := range tags {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tags (name, is_system) VALUES (?, 0) ON CONFLICT(name) DO NOTHING`, t); err != nil {
			return fmt.Errorf("ensure tag %q: %w", t, err)
		}
	}
	return nil
}
