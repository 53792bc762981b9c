package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// Caller-facing errors for the template consumption gate.
var (
	ErrNotFound    = errors.New("relief template not found")
	ErrAlreadyUsed = errors.New("relief template already used")
)

// InsertReliefTemplate persists a relief template and its in-kind items in
// a single transaction. A failure anywhere rolls back the whole item.
func (db *DB) InsertReliefTemplate(headlineID int64, reliefTitle, description string, monetaryGoal float64, deploymentDate *string, inkind []InkindItem) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO relief_templates (headline_id, relief_title, description, monetary_goal, deployment_date)
		VALUES (?, ?, ?, ?, ?)`,
		headlineID, reliefTitle, description, monetaryGoal, deploymentDate,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("insert template: %w", err)
	}

	templateID, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	for _, item := range inkind {
		if _, err := tx.Exec(
			`INSERT INTO relief_inkind (relief_template_id, item, item_desc, quantity)
			VALUES (?, ?, ?, ?)`,
			templateID, item.Item, item.ItemDesc, item.Quantity,
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert inkind %q: %w", item.Item, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return templateID, nil
}

// GetReliefTemplateByID returns a single template, or nil.
func (db *DB) GetReliefTemplateByID(id int64) (*ReliefTemplate, error) {
	row := db.conn.QueryRow(
		`SELECT id, headline_id, relief_title, description, monetary_goal,
		deployment_date, is_used, urgency_rank, created_at, updated_at
		FROM relief_templates WHERE id = ?`, id,
	)
	var t ReliefTemplate
	var used int
	err := row.Scan(&t.ID, &t.HeadlineID, &t.ReliefTitle, &t.Description,
		&t.MonetaryGoal, &t.DeploymentDate, &used, &t.UrgencyRank,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.IsUsed = used != 0
	return &t, nil
}

// HasTemplateForHeadline reports whether a headline already spawned a
// relief template.
func (db *DB) HasTemplateForHeadline(headlineID int64) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM relief_templates WHERE headline_id = ?", headlineID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetReliefDetails returns unused templates joined with their headline and
// in-kind children, denormalized for the caller. page is 1-based.
func (db *DB) GetReliefDetails(page, count int) ([]ReliefDetail, error) {
	rows, err := db.conn.Query(
		`SELECT t.id, t.headline_id, t.relief_title, t.description, t.monetary_goal,
		t.deployment_date, t.is_used, t.urgency_rank, t.created_at, t.updated_at,
		h.disaster_type, h.title, h.link, h.posted_datetime
		FROM relief_templates t
		JOIN headlines h ON h.id = t.headline_id
		WHERE t.is_used = 0
		ORDER BY t.id ASC
		LIMIT ? OFFSET ?`, count, offset(page, count),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []ReliefDetail
	for rows.Next() {
		var d ReliefDetail
		var used int
		if err := rows.Scan(&d.ID, &d.HeadlineID, &d.ReliefTitle, &d.Description,
			&d.MonetaryGoal, &d.DeploymentDate, &used, &d.UrgencyRank,
			&d.CreatedAt, &d.UpdatedAt,
			&d.DisasterType, &d.HeadlineTitle, &d.Link, &d.PostedDatetime); err != nil {
			return nil, err
		}
		d.IsUsed = used != 0
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range details {
		inkind, err := db.getInkindForTemplate(details[i].ID)
		if err != nil {
			return nil, err
		}
		details[i].Inkind = inkind
	}
	return details, nil
}

func (db *DB) getInkindForTemplate(templateID int64) ([]InkindItem, error) {
	rows, err := db.conn.Query(
		`SELECT id, relief_template_id, item, item_desc, quantity
		FROM relief_inkind WHERE relief_template_id = ? ORDER BY id ASC`, templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InkindItem
	for rows.Next() {
		var item InkindItem
		if err := rows.Scan(&item.ID, &item.ReliefTemplateID, &item.Item,
			&item.ItemDesc, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UseReliefTemplate marks a template used. The transition is one-way: a
// second call returns ErrAlreadyUsed. The conditional UPDATE makes the
// flip atomic under concurrent callers.
func (db *DB) UseReliefTemplate(id int64) error {
	template, err := db.GetReliefTemplateByID(id)
	if err != nil {
		return err
	}
	if template == nil {
		return ErrNotFound
	}
	if template.IsUsed {
		return ErrAlreadyUsed
	}

	result, err := db.conn.Exec(
		`UPDATE relief_templates SET is_used = 1, updated_at = datetime('now')
		WHERE id = ? AND is_used = 0`, id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Lost a race with another caller.
		return ErrAlreadyUsed
	}
	return nil
}

// UpdateUrgencyRanks stores advisory urgency ranks for the given
// templates. Ranks are recomputed on each ranking pass.
func (db *DB) UpdateUrgencyRanks(ranks map[int64]int) error {
	if len(ranks) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for id, rank := range ranks {
		if _, err := tx.Exec(
			`UPDATE relief_templates SET urgency_rank = ?, updated_at = datetime('now')
			WHERE id = ?`, rank, id,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("update rank for %d: %w", id, err)
		}
	}
	return tx.Commit()
}
