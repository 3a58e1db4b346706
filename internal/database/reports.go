package database

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

// InsertReport appends a report to the history and fills in its ID. The
// report becomes the new authoritative portfolio, so the latest cache is
// updated on success.
func (db *DB) InsertReport(r *models.Report) error {
	data, err := r.MarshalData()
	if err != nil {
		return fmt.Errorf("failed to encode report data: %w", err)
	}

	query := `
		INSERT INTO reports (report_date, ts, news_summary, data)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := db.conn.QueryRow(query, r.Date, r.Timestamp, r.NewsSummary, data).Scan(&r.ID); err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	db.cacheLatest(r.Clone())
	return nil
}

// GetAllReports returns the full history, newest first. Rows whose payload
// no longer decodes are logged and skipped rather than failing the listing.
func (db *DB) GetAllReports() ([]models.Report, error) {
	query := `
		SELECT id, report_date, ts, news_summary, data
		FROM reports
		ORDER BY ts DESC
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		if r == nil {
			continue
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

// GetLatestReport returns the most recent report, or nil when the history
// is empty. The result is cached until the next insert or history wipe.
func (db *DB) GetLatestReport() (*models.Report, error) {
	if cached := db.cachedLatest(); cached != nil {
		return cached.Clone(), nil
	}

	query := `
		SELECT id, report_date, ts, news_summary, data
		FROM reports
		ORDER BY ts DESC
		LIMIT 1
	`
	row := db.conn.QueryRow(query)

	var r models.Report
	var raw []byte
	err := row.Scan(&r.ID, &r.Date, &r.Timestamp, &r.NewsSummary, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	if err := r.UnmarshalData(raw); err != nil {
		return nil, fmt.Errorf("failed to decode latest report %d: %w", r.ID, err)
	}

	db.cacheLatest(r.Clone())
	return &r, nil
}

// GetReportByID returns one report, or nil when it does not exist.
func (db *DB) GetReportByID(id int64) (*models.Report, error) {
	query := `
		SELECT id, report_date, ts, news_summary, data
		FROM reports
		WHERE id = $1
	`
	row := db.conn.QueryRow(query, id)

	var r models.Report
	var raw []byte
	err := row.Scan(&r.ID, &r.Date, &r.Timestamp, &r.NewsSummary, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %d: %w", id, err)
	}
	if err := r.UnmarshalData(raw); err != nil {
		return nil, fmt.Errorf("failed to decode report %d: %w", id, err)
	}
	return &r, nil
}

// UpdateEntryPrice corrects the entry price of one finalist in a stored
// report and recomputes its ROI. Returns false when the report or the code
// is not present.
func (db *DB) UpdateEntryPrice(id int64, code string, price decimal.Decimal) (bool, error) {
	r, err := db.GetReportByID(id)
	if err != nil {
		return false, err
	}
	if r == nil {
		return false, nil
	}

	canonical := models.CanonicalCode(code)
	found := false
	for i := range r.Data.Finalists {
		if models.CanonicalCode(r.Data.Finalists[i].Code) != canonical {
			continue
		}
		found = true
		r.Data.Finalists[i].EntryPrice = price
		r.Data.Finalists[i].ROI = models.ComputeROI(price, r.Data.Finalists[i].CurrentPrice)
	}
	if !found {
		return false, nil
	}

	if err := db.writeReportData(r); err != nil {
		return false, err
	}
	log.Printf("[DB] updated entry price for %s in report %d", canonical, id)
	return true, nil
}

// ReplaceFinalists overwrites the finalists of a stored report, used by the
// price refresh. Returns false when the report does not exist.
func (db *DB) ReplaceFinalists(id int64, finalists []models.Position) (bool, error) {
	r, err := db.GetReportByID(id)
	if err != nil {
		return false, err
	}
	if r == nil {
		return false, nil
	}

	r.Data.Finalists = finalists
	if err := db.writeReportData(r); err != nil {
		return false, err
	}
	return true, nil
}

// ClearHistory wipes every report. The latest cache is invalidated so the
// next run starts from an empty book.
func (db *DB) ClearHistory() (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM reports`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear report history: %w", err)
	}
	deleted, _ := res.RowsAffected()
	db.cacheLatest(nil)
	log.Printf("[DB] cleared report history, %d reports deleted", deleted)
	return deleted, nil
}

func (db *DB) writeReportData(r *models.Report) error {
	data, err := r.MarshalData()
	if err != nil {
		return fmt.Errorf("failed to encode report data: %w", err)
	}
	if _, err := db.conn.Exec(`UPDATE reports SET data = $1 WHERE id = $2`, data, r.ID); err != nil {
		return fmt.Errorf("failed to update report %d: %w", r.ID, err)
	}

	if cached := db.cachedLatest(); cached != nil && cached.ID == r.ID {
		db.cacheLatest(r.Clone())
	}
	return nil
}

// scanReport decodes one row from GetAllReports. A corrupt payload returns
// (nil, nil) so the listing can skip it.
func scanReport(rows *sql.Rows) (*models.Report, error) {
	var r models.Report
	var raw []byte
	if err := rows.Scan(&r.ID, &r.Date, &r.Timestamp, &r.NewsSummary, &raw); err != nil {
		return nil, fmt.Errorf("failed to scan report row: %w", err)
	}
	if err := r.UnmarshalData(raw); err != nil {
		log.Printf("[DB] report %d has corrupt data, skipping: %v", r.ID, err)
		return nil, nil
	}
	return &r, nil
}
