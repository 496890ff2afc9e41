package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kauri-edtech/smssync/internal/ctxutil"
	"github.com/kauri-edtech/smssync/internal/models"
)

func (st *Store) LinkedGroups(ctx context.Context, schoolID int64) (map[string]string, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := st.db.QueryContext(ctx, `
SELECT g.idnumber, g.name
FROM school_groups sg
JOIN groups g ON g.id = sg.groupid
WHERE sg.schoolid = $1 AND g.idnumber <> ''`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	linked := make(map[string]string)
	for rows.Next() {
		var idnumber, name string
		if err := rows.Scan(&idnumber, &name); err != nil {
			return nil, err
		}
		linked[idnumber] = name
	}
	return linked, rows.Err()
}

func (st *Store) LinkedGroupIDs(ctx context.Context, schoolID int64) ([]int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := st.db.QueryContext(ctx, `
SELECT groupid FROM school_groups WHERE schoolid = $1`, schoolID)
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

func scanGroup(row interface{ Scan(...any) error }) (*models.Group, error) {
	var g models.Group
	if err := row.Scan(&g.ID, &g.CourseID, &g.Name, &g.IDNumber); err != nil {
		return nil, err
	}
	return &g, nil
}

func (st *Store) GroupByID(ctx context.Context, id int64) (*models.Group, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	row := st.db.QueryRowContext(ctx, `
SELECT id, courseid, name, idnumber FROM groups WHERE id = $1`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func (st *Store) GroupByIDNumber(ctx context.Context, courseID int64, idnumber string) (*models.Group, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	row := st.db.QueryRowContext(ctx, `
SELECT id, courseid, name, idnumber FROM groups
WHERE courseid = $1 AND idnumber = $2`, courseID, idnumber)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func (st *Store) GroupBySchoolIDNumber(ctx context.Context, schoolID int64, idnumber string) (*models.Group, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	row := st.db.QueryRowContext(ctx, `
SELECT g.id, g.courseid, g.name, g.idnumber
FROM school_groups sg
JOIN groups g ON g.id = sg.groupid
WHERE sg.schoolid = $1 AND g.idnumber = $2`, schoolID, idnumber)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func (st *Store) GroupByName(ctx context.Context, courseID int64, name string) (*models.Group, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	row := st.db.QueryRowContext(ctx, `
SELECT id, courseid, name, idnumber FROM groups
WHERE courseid = $1 AND name = $2
ORDER BY id
LIMIT 1`, courseID, name)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func (st *Store) CreateGroup(ctx context.Context, g *models.Group) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var id int64
	err := st.db.QueryRowContext(ctx, `
INSERT INTO groups (courseid, name, idnumber) VALUES ($1, $2, $3) RETURNING id`,
		g.CourseID, g.Name, g.IDNumber).Scan(&id)
	return id, err
}

func (st *Store) UpdateGroup(ctx context.Context, g *models.Group) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
UPDATE groups SET courseid = $2, name = $3, idnumber = $4 WHERE id = $1`,
		g.ID, g.CourseID, g.Name, g.IDNumber)
	return err
}

func (st *Store) DeleteGroup(ctx context.Context, id int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	return err
}

func (st *Store) LinkGroup(ctx context.Context, schoolID, groupID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
INSERT INTO school_groups (schoolid, groupid)
VALUES ($1, $2)
ON CONFLICT (schoolid, groupid) DO NOTHING`, schoolID, groupID)
	return err
}

func (st *Store) UnlinkGroup(ctx context.Context, schoolID, groupID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
DELETE FROM school_groups WHERE schoolid = $1 AND groupid = $2`, schoolID, groupID)
	return err
}

func (st *Store) GroupSchoolID(ctx context.Context, groupID int64) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var id int64
	err := st.db.QueryRowContext(ctx, `
SELECT schoolid FROM school_groups WHERE groupid = $1`, groupID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// IsParentGroup reports whether any membership in the group was placed by
// the parent cohort-linkage component rather than by the sync.
func (st *Store) IsParentGroup(ctx context.Context, groupID int64) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var n int
	err := st.db.QueryRowContext(ctx, `
SELECT count(*) FROM group_members
WHERE groupid = $1 AND component <> ''`, groupID).Scan(&n)
	return n > 0, err
}
