package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kauri-edtech/smssync/internal/ctxutil"
	"github.com/kauri-edtech/smssync/internal/models"
)

func (st *Store) CreateCohort(ctx context.Context, name string) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var id int64
	err := st.db.QueryRowContext(ctx, `
INSERT INTO cohorts (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	return id, err
}

func (st *Store) CohortName(ctx context.Context, id int64) (string, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var name string
	err := st.db.QueryRowContext(ctx, `SELECT name FROM cohorts WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

func (st *Store) DeleteCohort(ctx context.Context, id int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `DELETE FROM cohorts WHERE id = $1`, id)
	return err
}

func (st *Store) IsCohortMember(ctx context.Context, cohortID, userID int64) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var n int
	err := st.db.QueryRowContext(ctx, `
SELECT count(*) FROM cohort_members WHERE cohortid = $1 AND userid = $2`,
		cohortID, userID).Scan(&n)
	return n > 0, err
}

func (st *Store) AddCohortMember(ctx context.Context, cohortID, userID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
INSERT INTO cohort_members (cohortid, userid)
VALUES ($1, $2)
ON CONFLICT (cohortid, userid) DO NOTHING`, cohortID, userID)
	return err
}

func (st *Store) RemoveCohortMember(ctx context.Context, cohortID, userID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
DELETE FROM cohort_members WHERE cohortid = $1 AND userid = $2`, cohortID, userID)
	return err
}

func (st *Store) OtherCohorts(ctx context.Context, userID, cohortID int64) ([]int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := st.db.QueryContext(ctx, `
SELECT cohortid FROM cohort_members
WHERE userid = $1 AND cohortid <> $2
ORDER BY cohortid`, userID, cohortID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (st *Store) CohortMemberIDs(ctx context.Context, cohortID int64, auth string) ([]int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	query := `
SELECT cm.userid
FROM cohort_members cm
JOIN users u ON u.id = cm.userid
WHERE cm.cohortid = $1 AND NOT u.deleted`
	args := []any{cohortID}
	if auth != "" {
		query += ` AND u.auth = $2`
		args = append(args, auth)
	}
	rows, err := st.db.QueryContext(ctx, query+` ORDER BY cm.userid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (st *Store) CohortMemberNSNs(ctx context.Context, cohortID int64) ([]string, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := st.db.QueryContext(ctx, `
SELECT u.idnumber
FROM cohort_members cm
JOIN users u ON u.id = cm.userid
WHERE cm.cohortid = $1 AND u.auth = $2
  AND NOT u.deleted AND NOT u.suspended AND u.idnumber <> ''
ORDER BY u.idnumber`, cohortID, models.AuthAPI)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nsns []string
	for rows.Next() {
		var nsn string
		if err := rows.Scan(&nsn); err != nil {
			return nil, err
		}
		nsns = append(nsns, nsn)
	}
	return nsns, rows.Err()
}

func (st *Store) IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var n int
	err := st.db.QueryRowContext(ctx, `
SELECT count(*) FROM group_members WHERE groupid = $1 AND userid = $2`,
		groupID, userID).Scan(&n)
	return n > 0, err
}

func (st *Store) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
INSERT INTO group_members (groupid, userid)
VALUES ($1, $2)
ON CONFLICT (groupid, userid) DO NOTHING`, groupID, userID)
	return err
}

func (st *Store) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
DELETE FROM group_members WHERE groupid = $1 AND userid = $2`, groupID, userID)
	return err
}

func (st *Store) UserGroups(ctx context.Context, courseID, userID int64) ([]models.Group, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := st.db.QueryContext(ctx, `
SELECT g.id, g.courseid, g.name, g.idnumber
FROM group_members gm
JOIN groups g ON g.id = gm.groupid
WHERE g.courseid = $1 AND gm.userid = $2
ORDER BY g.id`, courseID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func (st *Store) UserGroupIDsByNamePrefix(ctx context.Context, userID int64, prefix string) ([]int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := st.db.QueryContext(ctx, `
SELECT g.id
FROM group_members gm
JOIN groups g ON g.id = gm.groupid
WHERE gm.userid = $1 AND g.name LIKE $2 || '%'
ORDER BY g.id`, userID, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
