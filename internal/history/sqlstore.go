package history

import (
	"database/sql"
	"encoding/json"

	"github.com/gift-practice/giftpractice/internal/session"
)

// SQLStore persists records in the test_history table. The $n placeholders
// are understood by both the sqlite and postgres schemas from internal/db, so
// one statement set serves both drivers.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Append(rec Record) error {
	catJSON, err := json.Marshal(rec.Categories)
	if err != nil {
		return err
	}
	idsJSON, err := json.Marshal(rec.WrongQuestionIDs)
	if err != nil {
		return err
	}
	var detailsJSON any
	if rec.Details != nil {
		b, err := json.Marshal(rec.Details)
		if err != nil {
			return err
		}
		detailsJSON = string(b)
	}
	_, err = s.db.Exec(`INSERT INTO test_history
		(timestamp,date,time,gift_file,categories_json,total_questions,correct,wrong,percentage,wrong_question_ids_json,details_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.Timestamp, rec.Date, rec.Time, rec.GiftFile, string(catJSON),
		rec.TotalQuestions, rec.Correct, rec.Wrong, rec.Percentage, string(idsJSON), detailsJSON)
	return err
}

func (s *SQLStore) All() ([]Record, error) {
	rows, err := s.db.Query(`SELECT timestamp,date,time,gift_file,categories_json,
		total_questions,correct,wrong,percentage,wrong_question_ids_json,details_json
		FROM test_history ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var catJSON, idsJSON string
		var detailsJSON sql.NullString
		if err := rows.Scan(&rec.Timestamp, &rec.Date, &rec.Time, &rec.GiftFile, &catJSON,
			&rec.TotalQuestions, &rec.Correct, &rec.Wrong, &rec.Percentage, &idsJSON, &detailsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(catJSON), &rec.Categories); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(idsJSON), &rec.WrongQuestionIDs); err != nil {
			return nil, err
		}
		if detailsJSON.Valid && detailsJSON.String != "" {
			var details []session.WrongDetail
			if err := json.Unmarshal([]byte(detailsJSON.String), &details); err != nil {
				return nil, err
			}
			rec.Details = details
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM test_history`)
	return err
}
