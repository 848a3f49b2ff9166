package store

import (
	"database/sql"
	"fmt"
	"slices"

	"github.com/lox/weatherpulse/internal/models"
)

// Store is the SQLite-backed durable log.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AppendReading(r models.Reading) error {
	_, err := s.db.Exec(`
		INSERT INTO readings (received_at, temperature, pressure, humidity, altitude, light)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ReceivedAt.UTC(), r.Temperature, r.Pressure, r.Humidity, r.Altitude, r.Light)
	return err
}

// AppendPredictions writes every point of a batch in one transaction.
func (s *Store) AppendPredictions(points []models.Prediction) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO predictions (batch_id, prediction_time, target_time, temperature, pressure, humidity, altitude)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(p.BatchID, p.PredictionTime.UTC(), p.TargetTime.UTC(),
			p.Temperature, p.Pressure, p.Humidity, p.Altitude); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert prediction: %w", err)
		}
	}
	return tx.Commit()
}

// RecentReadings returns up to limit of the newest readings, oldest first.
func (s *Store) RecentReadings(limit int) ([]models.Reading, error) {
	rows, err := s.db.Query(`
		SELECT received_at, temperature, pressure, humidity, altitude, light
		FROM readings
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.ReceivedAt, &r.Temperature, &r.Pressure, &r.Humidity, &r.Altitude, &r.Light); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(readings)
	return readings, nil
}

func (s *Store) ReadingCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&n)
	return n, err
}

func (s *Store) PredictionBatchCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(DISTINCT batch_id) FROM predictions").Scan(&n)
	return n, err
}
