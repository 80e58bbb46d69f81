package analytics

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides database operations for analytics.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the analytics database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			browser TEXT NOT NULL,
			os TEXT NOT NULL,
			device TEXT NOT NULL,
			path TEXT NOT NULL,
			referrer TEXT,
			screen_size TEXT,
			timestamp DATETIME NOT NULL,
			duration_sec INTEGER DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS bot_visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bot_name TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			user_agent TEXT NOT NULL,
			path TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp);
		CREATE INDEX IF NOT EXISTS idx_visits_visitor_id ON visits(visitor_id);
		CREATE INDEX IF NOT EXISTS idx_visits_path ON visits(path);
		CREATE INDEX IF NOT EXISTS idx_bot_visits_timestamp ON bot_visits(timestamp);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// SaveVisit stores a new visit.
func (s *Store) SaveVisit(v *Visit) error {
	_, err := s.db.Exec(`
		INSERT INTO visits (visitor_id, session_id, ip_hash, browser, os, device, path, referrer, screen_size, timestamp, duration_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.VisitorID, v.SessionID, v.IPHash, v.Browser, v.OS, v.Device, v.Path, v.Referrer, v.ScreenSize, v.Timestamp.UTC(), v.DurationSec)
	return err
}

// UpdateVisitDuration updates the most recent visit for a visitor+path.
// Used by the unload beacon so a page view counts once.
func (s *Store) UpdateVisitDuration(visitorID, path string, durationSec int) error {
	_, err := s.db.Exec(`
		UPDATE visits SET duration_sec = ?
		WHERE id = (
			SELECT id FROM visits
			WHERE visitor_id = ? AND path = ?
			ORDER BY timestamp DESC LIMIT 1
		)
	`, durationSec, visitorID, path)
	return err
}

// SaveBotVisit stores a new bot visit.
func (s *Store) SaveBotVisit(bv *BotVisit) error {
	_, err := s.db.Exec(`
		INSERT INTO bot_visits (bot_name, ip_hash, user_agent, path, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, bv.BotName, bv.IPHash, bv.UserAgent, bv.Path, bv.Timestamp.UTC())
	return err
}

// GetStats returns aggregated statistics for the given time range.
func (s *Store) GetStats(from, to time.Time) (*Stats, error) {
	stats := &Stats{
		Period:        from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
		TopPages:      []PageStat{},
		BrowserStats:  []DimensionStat{},
		OSStats:       []DimensionStat{},
		DeviceStats:   []DimensionStat{},
		ReferrerStats: []DimensionStat{},
		DailyViews:    []DailyView{},
		TopBots:       []DimensionStat{},
	}

	err := s.db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT visitor_id),
			CAST(COALESCE(AVG(NULLIF(duration_sec, 0)), 0) AS INTEGER)
		FROM visits WHERE timestamp BETWEEN ? AND ?
	`, from, to).Scan(&stats.TotalViews, &stats.UniqueVisitors, &stats.AvgDuration)
	if err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}

	pages, err := s.pageStats(`
		SELECT path, COUNT(*) AS views FROM visits
		WHERE timestamp BETWEEN ? AND ?
		GROUP BY path ORDER BY views DESC LIMIT 10
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("top pages: %w", err)
	}
	stats.TopPages = pages

	for _, dim := range []struct {
		column string
		out    *[]DimensionStat
	}{
		{"browser", &stats.BrowserStats},
		{"os", &stats.OSStats},
		{"device", &stats.DeviceStats},
		{"referrer", &stats.ReferrerStats},
	} {
		rows, err := s.dimensionStats(dim.column, from, to)
		if err != nil {
			return nil, fmt.Errorf("%s stats: %w", dim.column, err)
		}
		*dim.out = rows
	}

	daily, err := s.dailyViews(from, to)
	if err != nil {
		return nil, fmt.Errorf("daily views: %w", err)
	}
	stats.DailyViews = daily

	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM bot_visits WHERE timestamp BETWEEN ? AND ?
	`, from, to).Scan(&stats.BotVisits)
	if err != nil {
		return nil, fmt.Errorf("count bot visits: %w", err)
	}

	bots, err := s.queryDimension(`
		SELECT bot_name, COUNT(*) AS count FROM bot_visits
		WHERE timestamp BETWEEN ? AND ?
		GROUP BY bot_name ORDER BY count DESC LIMIT 10
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("top bots: %w", err)
	}
	stats.TopBots = bots

	return stats, nil
}

func (s *Store) pageStats(query string, from, to time.Time) ([]PageStat, error) {
	rows, err := s.db.Query(query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PageStat
	for rows.Next() {
		var p PageStat
		if err := rows.Scan(&p.Path, &p.Views); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) dimensionStats(column string, from, to time.Time) ([]DimensionStat, error) {
	// column is one of a fixed set of identifiers, never user input.
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS count FROM visits
		WHERE timestamp BETWEEN ? AND ?
		GROUP BY %s ORDER BY count DESC LIMIT 10
	`, column, column)
	return s.queryDimension(query, from, to)
}

func (s *Store) queryDimension(query string, from, to time.Time) ([]DimensionStat, error) {
	rows, err := s.db.Query(query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DimensionStat
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) dailyViews(from, to time.Time) ([]DailyView, error) {
	rows, err := s.db.Query(`
		SELECT strftime('%Y-%m-%d', timestamp) AS day, COUNT(*) AS views
		FROM visits WHERE timestamp BETWEEN ? AND ?
		GROUP BY day ORDER BY day
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyView
	for rows.Next() {
		var d DailyView
		if err := rows.Scan(&d.Date, &d.Views); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RealtimeVisitors returns unique visitors within the last 5 minutes.
func (s *Store) RealtimeVisitors() (int, error) {
	cutoff := time.Now().UTC().Add(-5 * time.Minute)
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(DISTINCT visitor_id) FROM visits WHERE timestamp > ?
	`, cutoff).Scan(&count)
	return count, err
}

// CleanupOldVisits removes visits and bot visits older than retentionDays.
func (s *Store) CleanupOldVisits(retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	if _, err := s.db.Exec(`DELETE FROM visits WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup visits: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM bot_visits WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup bot_visits: %w", err)
	}
	return nil
}
