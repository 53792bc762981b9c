package database

import (
	"database/sql"
)

// NonDisaster is the category assigned to headlines that fail the
// classifier's confidence threshold. These are never persisted.
const NonDisaster = "non-disaster"

// InsertHeadline inserts a headline. Returns the ID on success, 0 if the
// link already exists.
func (db *DB) InsertHeadline(title, link, disasterType string, postedDatetime, articleBody *string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO headlines (title, link, disaster_type, posted_datetime, article_body)
		VALUES (?, ?, ?, ?, ?)`,
		title, link, disasterType, postedDatetime, articleBody,
	)
	if err != nil {
		// Duplicate link constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetHeadlineByLink returns the headline with the given link, or nil.
func (db *DB) GetHeadlineByLink(link string) (*Headline, error) {
	row := db.conn.QueryRow(
		`SELECT id, title, link, disaster_type, posted_datetime, article_body, created_at
		FROM headlines WHERE link = ?`, link,
	)
	return scanHeadline(row)
}

// GetHeadlineByID returns a single headline by ID, or nil.
func (db *DB) GetHeadlineByID(id int64) (*Headline, error) {
	row := db.conn.QueryRow(
		`SELECT id, title, link, disaster_type, posted_datetime, article_body, created_at
		FROM headlines WHERE id = ?`, id,
	)
	return scanHeadline(row)
}

// GetRecentDisasterHeadlines returns classified disaster headlines newest
// first, paginated. page is 1-based.
func (db *DB) GetRecentDisasterHeadlines(page, count int) ([]Headline, error) {
	rows, err := db.conn.Query(
		`SELECT id, title, link, disaster_type, posted_datetime, article_body, created_at
		FROM headlines WHERE disaster_type != ?
		ORDER BY posted_datetime DESC, id DESC
		LIMIT ? OFFSET ?`, NonDisaster, count, offset(page, count),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHeadlines(rows)
}

// GetUntemplatedHeadlines returns headlines with no relief template yet,
// oldest first so earlier disasters are templated before later ones.
func (db *DB) GetUntemplatedHeadlines(page, count int) ([]Headline, error) {
	rows, err := db.conn.Query(
		`SELECT id, title, link, disaster_type, posted_datetime, article_body, created_at
		FROM headlines
		WHERE id NOT IN (SELECT headline_id FROM relief_templates)
		ORDER BY id ASC
		LIMIT ? OFFSET ?`, count, offset(page, count),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHeadlines(rows)
}

func offset(page, count int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * count
}

func scanHeadlines(rows *sql.Rows) ([]Headline, error) {
	var headlines []Headline
	for rows.Next() {
		var h Headline
		if err := rows.Scan(&h.ID, &h.Title, &h.Link, &h.DisasterType,
			&h.PostedDatetime, &h.ArticleBody, &h.CreatedAt); err != nil {
			return nil, err
		}
		headlines = append(headlines, h)
	}
	return headlines, rows.Err()
}

func scanHeadline(row *sql.Row) (*Headline, error) {
	var h Headline
	err := row.Scan(&h.ID, &h.Title, &h.Link, &h.DisasterType,
		&h.PostedDatetime, &h.ArticleBody, &h.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}
