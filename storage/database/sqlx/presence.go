package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/presence"
)

type presenceRepository struct {
	db *sqlx.DB
}

var _ presence.Repository = (*presenceRepository)(nil) // interface compliance check

func NewPresenceRepository(db *sqlx.DB) *presenceRepository {
	return &presenceRepository{db: db}
}

type presenceRow struct {
	UserID    string    `db:"user_id"`
	Online    bool      `db:"online"`
	Typing    bool      `db:"typing"`
	LastSeen  null.Time `db:"last_seen"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (repo presenceRepository) unrow(row presenceRow) presence.Record {
	return presence.Record{
		UserID:    row.UserID,
		Online:    row.Online,
		Typing:    row.Typing,
		LastSeen:  row.LastSeen.Time,
		UpdatedAt: row.UpdatedAt,
	}
}

func (repo presenceRepository) FetchSnapshot(ctx context.Context) ([]presence.Record, error) {
	var rows []presenceRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM presence`); err != nil {
		return nil, errors.Wrap(err, "querying presence snapshot")
	}
	records := make([]presence.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, repo.unrow(row))
	}
	return records, nil
}

func (repo presenceRepository) GetRecord(ctx context.Context, userID string) (presence.Record, error) {
	var row presenceRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM presence WHERE user_id = $1`, userID); err != nil {
		if err == sql.ErrNoRows {
			return presence.Record{}, presence.ErrNotFound
		}
		return presence.Record{}, errors.Wrap(err, "getting presence record")
	}
	return repo.unrow(row), nil
}

func (repo presenceRepository) WriteHeartbeat(ctx context.Context, userID string, at time.Time) error {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO presence (user_id, online, last_seen, updated_at)
		 VALUES ($1, TRUE, $2, $2)
		 ON CONFLICT (user_id) DO UPDATE SET online = TRUE, last_seen = $2, updated_at = $2`,
		userID, at.UTC(),
	)
	return errors.Wrap(err, "writing heartbeat")
}

func (repo presenceRepository) SetOnline(ctx context.Context, userID string, online bool, at time.Time) error {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO presence (user_id, online, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET online = $2, updated_at = $3`,
		userID, online, at.UTC(),
	)
	return errors.Wrap(err, "setting online flag")
}
