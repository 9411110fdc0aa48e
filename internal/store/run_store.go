package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vrsandeep/seo-batch/internal/models"
)

// SaveRun writes run, its items and its outcomes, replacing any earlier copy.
func (s *Store) SaveRun(run *models.BatchRun) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t := run.Totals()
	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC()
	}
	_, err = tx.Exec(`
        INSERT INTO batch_runs (id, mode, delay_seconds, total, succeeded, failed, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            mode = excluded.mode,
            delay_seconds = excluded.delay_seconds,
            total = excluded.total,
            succeeded = excluded.succeeded,
            failed = excluded.failed,
            started_at = excluded.started_at,
            finished_at = excluded.finished_at
    `, run.ID, run.Mode, run.DelaySeconds, t.Total, t.Succeeded, t.Failed, run.StartedAt.UTC(), finished)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}

	if _, err := tx.Exec("DELETE FROM batch_items WHERE run_id = ?", run.ID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM batch_outcomes WHERE run_id = ?", run.ID); err != nil {
		return err
	}

	itemStmt, err := tx.Prepare(`
        INSERT INTO batch_items (run_id, position, url, topic, keyword, language, brand, business_type, target_audience, query_text)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return err
	}
	defer itemStmt.Close()
	for i, it := range run.Items {
		if _, err := itemStmt.Exec(run.ID, i, it.URL, it.Topic, it.Keyword, string(it.Language), it.Brand, it.BusinessType, it.TargetAudience, it.QueryText); err != nil {
			return fmt.Errorf("saving item %d of run %s: %w", i, run.ID, err)
		}
	}

	outcomeStmt, err := tx.Prepare(`
        INSERT INTO batch_outcomes (run_id, position, url, succeeded, error, duration_ms, payload)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return err
	}
	defer outcomeStmt.Close()
	for i, o := range run.Outcomes {
		var payload any
		if o.Payload != nil {
			data, err := json.Marshal(o.Payload)
			if err != nil {
				return fmt.Errorf("encoding payload of %s: %w", o.URL, err)
			}
			payload = string(data)
		}
		if _, err := outcomeStmt.Exec(run.ID, i, o.URL, o.Succeeded, o.Error, o.Duration.Milliseconds(), payload); err != nil {
			return fmt.Errorf("saving outcome %d of run %s: %w", i, run.ID, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a stored run with its items and outcomes in order.
func (s *Store) GetRun(id string) (*models.BatchRun, error) {
	run := &models.BatchRun{ID: id}
	var finished sql.NullTime
	err := s.db.QueryRow(`
        SELECT mode, delay_seconds, started_at, finished_at
        FROM batch_runs WHERE id = ?`, id).Scan(&run.Mode, &run.DelaySeconds, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}

	itemRows, err := s.db.Query(`
        SELECT url, topic, keyword, language, brand, business_type, target_audience, query_text
        FROM batch_items WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	run.Items = []models.WorkItem{}
	for itemRows.Next() {
		var it models.WorkItem
		var lang string
		if err := itemRows.Scan(&it.URL, &it.Topic, &it.Keyword, &lang, &it.Brand, &it.BusinessType, &it.TargetAudience, &it.QueryText); err != nil {
			return nil, err
		}
		it.Language = models.Language(lang)
		run.Items = append(run.Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	outcomeRows, err := s.db.Query(`
        SELECT url, succeeded, error, duration_ms, payload
        FROM batch_outcomes WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer outcomeRows.Close()
	run.Outcomes = []models.ItemOutcome{}
	for outcomeRows.Next() {
		var o models.ItemOutcome
		var durationMS int64
		var payload sql.NullString
		if err := outcomeRows.Scan(&o.URL, &o.Succeeded, &o.Error, &durationMS, &payload); err != nil {
			return nil, err
		}
		o.Duration = time.Duration(durationMS) * time.Millisecond
		if payload.Valid && payload.String != "" {
			var p models.ResultPayload
			if err := json.Unmarshal([]byte(payload.String), &p); err != nil {
				return nil, fmt.Errorf("decoding payload of %s: %w", o.URL, err)
			}
			o.Payload = &p
		}
		run.Outcomes = append(run.Outcomes, o)
	}
	return run, outcomeRows.Err()
}

// ListRuns returns the most recent runs first, at most limit of them.
func (s *Store) ListRuns(limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
        SELECT id, mode, total, succeeded, failed, started_at, finished_at
        FROM batch_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.RunSummary{}
	for rows.Next() {
		var r models.RunSummary
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Mode, &r.Totals.Total, &r.Totals.Succeeded, &r.Totals.Failed, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		if r.Totals.Total > 0 {
			r.Totals.SuccessRate = float64(r.Totals.Succeeded) / float64(r.Totals.Total) * 100
		}
		summaries = append(summaries, r)
	}
	return summaries, rows.Err()
}

// DeleteRun removes a run and, through the cascade, its items and outcomes.
func (s *Store) DeleteRun(id string) error {
	res, err := s.db.Exec("DELETE FROM batch_runs WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// PruneRunsBefore deletes every run started before cutoff and returns how many were removed.
func (s *Store) PruneRunsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM batch_runs WHERE started_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
