package database

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM headlines", &s.TotalHeadlines},
		{"SELECT COUNT(*) FROM headlines WHERE disaster_type != '" + NonDisaster + "'", &s.DisasterHeadlines},
		{"SELECT COUNT(*) FROM relief_templates", &s.ReliefTemplates},
		{"SELECT COUNT(*) FROM relief_templates WHERE is_used = 1", &s.UsedTemplates},
		{"SELECT COUNT(*) FROM headlines WHERE id NOT IN (SELECT headline_id FROM relief_templates)", &s.Untemplated},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
