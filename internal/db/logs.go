package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/kauri-edtech/smssync/internal/ctxutil"
	"github.com/kauri-edtech/smssync/internal/models"
)

func (st *Store) AddLog(ctx context.Context, e *models.LogEntry) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var info any
	if e.Info != nil {
		b, err := json.Marshal(e.Info)
		if err != nil {
			return 0, err
		}
		info = b
	}
	var id int64
	err := st.db.QueryRowContext(ctx, `
INSERT INTO school_logs (schoolno, target, action, error, other, info, origin, ip, userid)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		e.SchoolNo, e.Target, e.Action, e.Error, e.Other, info, e.Origin, e.IP, e.UserID).Scan(&id)
	return id, err
}

func (st *Store) DeleteLogsBySchoolNo(ctx context.Context, schoolNo int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `DELETE FROM school_logs WHERE schoolno = $1`, schoolNo)
	return err
}

// ListLogs returns audit entries newest first, optionally filtered by
// school number. limit <= 0 means no limit.
func (st *Store) ListLogs(ctx context.Context, schoolNo int64, limit int) ([]models.LogEntry, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	query := `
SELECT id, schoolno, target, action, error, other, info, origin, ip, userid, timecreated
FROM school_logs`
	var args []any
	if schoolNo != 0 {
		query += ` WHERE schoolno = $1`
		args = append(args, schoolNo)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(limit)
	}
	rows, err := st.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var info sql.NullString
		if err := rows.Scan(&e.ID, &e.SchoolNo, &e.Target, &e.Action, &e.Error,
			&e.Other, &info, &e.Origin, &e.IP, &e.UserID, &e.TimeCreated); err != nil {
			return nil, err
		}
		if info.Valid && info.String != "" {
			if err := json.Unmarshal([]byte(info.String), &e.Info); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
