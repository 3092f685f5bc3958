package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// NOT NULL columns (name, avatar, roles, timestamps) bind plain Go values so
// zero values land as the column's DEFAULT, not as an explicit NULL; null
// wrappers stay only on the actually-nullable columns.
type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	Avatar       string         `db:"avatar"`
	IsActive     null.Bool      `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (repo userRepository) row(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{} // pq renders a nil array as NULL
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Avatar:       usr.Avatar,
		IsActive:     null.BoolFromPtr(usr.IsActive),
		Roles:        pq.StringArray(roles),
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unrow(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Avatar:       row.Avatar,
		IsActive:     row.IsActive.Ptr(),
		Roles:        []string(row.Roles),
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	var clash struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	err := repo.db.GetContext(ctx, &clash,
		`SELECT username, email FROM "user"
		 WHERE (username = $1 OR email = $2) AND NOT (id = ANY ($3))
		 LIMIT 1`,
		username, email, pq.StringArray(exclIDs),
	)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if clash.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

const insertUserQuery = `
	INSERT INTO "user" (id, name, username, email, avatar, is_active, roles, password_hash, created_at, updated_at, last_login)
	VALUES (:id, :name, :username, :email, :avatar, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.row(usr)
	_, err := repo.db.NamedExecContext(ctx, insertUserQuery, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unrow(row), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var row userRow
	var err error
	switch {
	case filter.ID != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, filter.ID)
	case len(filter.UsernameOrEmail) > 0:
		names := pq.StringArray(filter.UsernameOrEmail)
		err = repo.db.GetContext(ctx, &row,
			`SELECT * FROM "user" WHERE username = ANY ($1) OR email = ANY ($1) LIMIT 1`, names)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return repo.unrow(row), nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM "user" `+orderBy(core.DBOrdering{Field: "created_at", Ascending: true})); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unrow(row))
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := repo.row(usr)
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE "user"
		 SET name = :name, username = :username, email = :email, avatar = :avatar,
		     is_active = :is_active, roles = :roles, password_hash = :password_hash,
		     updated_at = :updated_at, last_login = :last_login
		 WHERE id = :id`,
		row,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
