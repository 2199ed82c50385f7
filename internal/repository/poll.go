// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"codeberg.org/oliverandrich/votany/internal/models"
)

const pollColumns = `id, author, issue, keywords, post_date, choices, voters, version`

type pollRow struct { //nolint:govet // fieldalignment: readability over optimization
	ID       string `db:"id"`
	Author   string `db:"author"`
	Issue    string `db:"issue"`
	Keywords string `db:"keywords"`
	PostDate int64  `db:"post_date"`
	Choices  string `db:"choices"`
	Voters   string `db:"voters"`
	Version  int64  `db:"version"`
}

func (row *pollRow) toModel() (*models.Poll, error) {
	poll := &models.Poll{
		ID:       row.ID,
		Author:   row.Author,
		Issue:    row.Issue,
		Keywords: row.Keywords,
		PostDate: time.Unix(row.PostDate, 0).UTC(),
		Version:  row.Version,
	}
	if err := json.Unmarshal([]byte(row.Choices), &poll.Choices); err != nil {
		return nil, fmt.Errorf("decode choices of poll %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Voters), &poll.Voters); err != nil {
		return nil, fmt.Errorf("decode voters of poll %s: %w", row.ID, err)
	}
	for i := range poll.Choices {
		if poll.Choices[i].Voters == nil {
			poll.Choices[i].Voters = []string{}
		}
	}
	if poll.Voters == nil {
		poll.Voters = []string{}
	}
	return poll, nil
}

func encodePoll(poll *models.Poll) (choices, voters string, err error) {
	c, err := json.Marshal(lo.Map(poll.Choices, func(c models.Choice, _ int) models.Choice {
		if c.Voters == nil {
			c.Voters = []string{}
		}
		return c
	}))
	if err != nil {
		return "", "", err
	}
	v, err := json.Marshal(lo.Ternary(poll.Voters == nil, []string{}, poll.Voters))
	if err != nil {
		return "", "", err
	}
	return string(c), string(v), nil
}

func rowsToPolls(rows []pollRow) ([]models.Poll, error) {
	polls := make([]models.Poll, 0, len(rows))
	for i := range rows {
		poll, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		polls = append(polls, *poll)
	}
	return polls, nil
}

// CreatePoll inserts a new poll and assigns its ID and first version.
func (r *Repository) CreatePoll(ctx context.Context, poll *models.Poll) error {
	if poll.ID == "" {
		poll.ID = uuid.NewString()
	}
	if poll.PostDate.IsZero() {
		poll.PostDate = r.Now()
	}
	poll.Version = 1

	choices, voters, err := encodePoll(poll)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO polls (`+pollColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		poll.ID, poll.Author, poll.Issue, poll.Keywords, poll.PostDate.Unix(), choices, voters, poll.Version)
	return wrapError(err)
}

// GetPoll retrieves a poll by ID.
func (r *Repository) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	var row pollRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return row.toModel()
}

// SavePoll replaces the stored document if it still has poll.Version and
// bumps the version. A stale version returns ErrConflict.
func (r *Repository) SavePoll(ctx context.Context, poll *models.Poll) error {
	choices, voters, err := encodePoll(poll)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE polls SET issue = ?, keywords = ?, choices = ?, voters = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		poll.Issue, poll.Keywords, choices, voters, poll.ID, poll.Version)
	if err != nil {
		return err
	}
	if err := requireRow(result); err == nil {
		poll.Version++
		return nil
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, `SELECT count(*) FROM polls WHERE id = ?`, poll.ID); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// DeletePoll deletes a poll by ID.
func (r *Repository) DeletePoll(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM polls WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// ListRecentPolls returns the newest polls first.
func (r *Repository) ListRecentPolls(ctx context.Context, limit int) ([]models.Poll, error) {
	var rows []pollRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+pollColumns+` FROM polls ORDER BY post_date DESC, seq DESC LIMIT ?`, limit); err != nil {
		return nil, err
	}
	return rowsToPolls(rows)
}

// ListPollsByAuthor returns all polls of one author, newest first.
func (r *Repository) ListPollsByAuthor(ctx context.Context, author string) ([]models.Poll, error) {
	var rows []pollRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+pollColumns+` FROM polls WHERE author = ? ORDER BY post_date DESC, seq DESC`, author); err != nil {
		return nil, err
	}
	return rowsToPolls(rows)
}

// SearchPolls runs a full-text search over issue and keywords. Any of the
// query words may match; results are ordered by relevance.
func (r *Repository) SearchPolls(ctx context.Context, query string, limit int) ([]models.Poll, error) {
	match := ftsQuery(query)
	if match == "" {
		return []models.Poll{}, nil
	}

	var rows []pollRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT p.id, p.author, p.issue, p.keywords, p.post_date, p.choices, p.voters, p.version
		FROM polls_fts JOIN polls p ON p.seq = polls_fts.rowid
		WHERE polls_fts MATCH ?
		ORDER BY polls_fts.rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, err
	}
	return rowsToPolls(rows)
}

// ftsQuery quotes every word so user input cannot use FTS5 query syntax.
// Words without letters or digits are dropped.
func ftsQuery(query string) string {
	terms := lo.Filter(lo.Uniq(strings.Fields(query)), func(term string, _ int) bool {
		return strings.IndexFunc(term, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		}) >= 0
	})
	quoted := lo.Map(terms, func(term string, _ int) string {
		return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	})
	return strings.Join(quoted, " OR ")
}
