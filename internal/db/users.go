package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/kauri-edtech/smssync/internal/ctxutil"
	"github.com/kauri-edtech/smssync/internal/models"
)

func (st *Store) UsersByIDNumbers(ctx context.Context, idnumbers []string) ([]models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	if len(idnumbers) == 0 {
		return nil, nil
	}
	rows, err := st.db.QueryContext(ctx, `
SELECT id, username, firstname, lastname, idnumber, email, auth, suspended, deleted
FROM users
WHERE idnumber = ANY($1) AND NOT deleted
ORDER BY id`, pq.Array(idnumbers))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName,
			&u.IDNumber, &u.Email, &u.Auth, &u.Suspended, &u.Deleted); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (st *Store) UserIDByIDNumberAuth(ctx context.Context, idnumber, auth string) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var id int64
	err := st.db.QueryRowContext(ctx, `
SELECT id FROM users
WHERE idnumber = $1 AND auth = $2 AND NOT deleted AND NOT suspended
ORDER BY id DESC
LIMIT 1`, idnumber, auth).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

func (st *Store) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var id int64
	err := st.db.QueryRowContext(ctx, `
INSERT INTO users (username, firstname, lastname, idnumber, email, auth, suspended)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		u.Username, u.FirstName, u.LastName, u.IDNumber, u.Email, u.Auth, u.Suspended).Scan(&id)
	return id, err
}

func (st *Store) UpdateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
UPDATE users
SET firstname = $2, lastname = $3, idnumber = $4, auth = $5, suspended = $6, timemodified = now()
WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.IDNumber, u.Auth, u.Suspended)
	return err
}

// DeleteUser marks the account deleted. Rows are kept so old audit entries
// stay resolvable.
func (st *Store) DeleteUser(ctx context.Context, id int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
UPDATE users SET deleted = TRUE, timemodified = now() WHERE id = $1`, id)
	return err
}

func (st *Store) CountUsernameClashes(ctx context.Context, prefix, idnumber string) (int, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var n int
	err := st.db.QueryRowContext(ctx, `
SELECT count(*) FROM users
WHERE username LIKE $1 || '%' AND idnumber <> $2 AND NOT deleted`,
		prefix, idnumber).Scan(&n)
	return n, err
}

func (st *Store) SetUserAuth(ctx context.Context, userID int64, auth string) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
UPDATE users SET auth = $2, timemodified = now() WHERE id = $1`, userID, auth)
	return err
}

func (st *Store) SaveProfileField(ctx context.Context, userID int64, field, value string) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
INSERT INTO user_profile (userid, field, value)
VALUES ($1, $2, $3)
ON CONFLICT (userid, field) DO UPDATE SET value = excluded.value`,
		userID, field, value)
	return err
}

func (st *Store) IsTeacher(ctx context.Context, userID, courseID int64) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var n int
	err := st.db.QueryRowContext(ctx, `
SELECT count(*) FROM role_assignments
WHERE userid = $1 AND courseid = $2 AND role = 'teacher'`, userID, courseID).Scan(&n)
	return n > 0, err
}
