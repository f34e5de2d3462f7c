package consultation

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a consultation does not exist.
var ErrNotFound = errors.New("consultation not found")

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	query := `SELECT id, patient, symptoms, transcription, response, created_at, completed_at
		FROM consultations WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	var (
		c             Consultation
		patientJSON   []byte
		responseJSON  []byte
		transcription sql.NullString
		completedAt   sql.NullTime
	)
	err := row.Scan(&c.ID, &patientJSON, &c.Symptoms, &transcription, &responseJSON, &c.CreatedAt, &completedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(patientJSON) > 0 {
		if err := json.Unmarshal(patientJSON, &c.Patient); err != nil {
			return nil, errors.Wrap(err, "unmarshal patient")
		}
	}
	if len(responseJSON) > 0 {
		if err := json.Unmarshal(responseJSON, &c.Response); err != nil {
			return nil, errors.Wrap(err, "unmarshal response")
		}
	}
	c.Transcription = transcription.String
	if completedAt.Valid {
		c.CompletedAt = completedAt.Time
	}
	return &c, nil
}

func (r *postgresRepo) Save(ctx context.Context, c *Consultation) error {
	patientJSON, err := json.Marshal(c.Patient)
	if err != nil {
		return err
	}
	responseJSON, err := json.Marshal(c.Response)
	if err != nil {
		return err
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	urgency := ""
	isEmergency := false
	if c.Response != nil {
		urgency = string(c.Response.Urgency)
		isEmergency = c.Response.IsEmergency()
	}

	var completedAt interface{}
	if !c.CompletedAt.IsZero() {
		completedAt = c.CompletedAt
	}

	query := `
		INSERT INTO consultations (id, patient, symptoms, transcription, response, urgency, is_emergency, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			transcription = $4,
			response = $5,
			urgency = $6,
			is_emergency = $7,
			completed_at = $9
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID, patientJSON, c.Symptoms, c.Transcription, responseJSON, urgency, isEmergency, c.CreatedAt, completedAt)
	return err
}

func (r *postgresRepo) ListRecent(ctx context.Context, limit int) ([]*Consultation, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, patient, symptoms, transcription, response, created_at, completed_at
		FROM consultations ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Consultation
	for rows.Next() {
		var (
			c             Consultation
			patientJSON   []byte
			responseJSON  []byte
			transcription sql.NullString
			completedAt   sql.NullTime
		)
		if err := rows.Scan(&c.ID, &patientJSON, &c.Symptoms, &transcription, &responseJSON, &c.CreatedAt, &completedAt); err != nil {
			return nil, err
		}
		if len(patientJSON) > 0 {
			if err := json.Unmarshal(patientJSON, &c.Patient); err != nil {
				return nil, errors.Wrap(err, "unmarshal patient")
			}
		}
		if len(responseJSON) > 0 {
			if err := json.Unmarshal(responseJSON, &c.Response); err != nil {
				return nil, errors.Wrap(err, "unmarshal response")
			}
		}
		c.Transcription = transcription.String
		if completedAt.Valid {
			c.CompletedAt = completedAt.Time
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
