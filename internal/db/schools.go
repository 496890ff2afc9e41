package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kauri-edtech/smssync/internal/ctxutil"
	"github.com/kauri-edtech/smssync/internal/models"
)

const schoolCols = `id, schoolno, name, moeid, cohortid, smsid, transferin, transferout, suspend, timecreated, timemodified`

func scanSchool(row interface{ Scan(...any) error }) (*models.School, error) {
	var s models.School
	err := row.Scan(&s.ID, &s.SchoolNo, &s.Name, &s.MoeID, &s.CohortID, &s.SMSID,
		&s.TransferIn, &s.TransferOut, &s.Suspend, &s.TimeCreated, &s.TimeModified)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (st *Store) EligibleSchools(ctx context.Context) ([]models.School, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := st.db.QueryContext(ctx, `
SELECT `+schoolCols+` FROM schools WHERE NOT suspend ORDER BY schoolno`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schools []models.School
	for rows.Next() {
		s, err := scanSchool(rows)
		if err != nil {
			return nil, err
		}
		schools = append(schools, *s)
	}
	return schools, rows.Err()
}

func (st *Store) SchoolByID(ctx context.Context, id int64) (*models.School, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	row := st.db.QueryRowContext(ctx, `
SELECT `+schoolCols+` FROM schools WHERE id = $1`, id)
	s, err := scanSchool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (st *Store) SchoolByCohortID(ctx context.Context, cohortID int64) (*models.School, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	row := st.db.QueryRowContext(ctx, `
SELECT `+schoolCols+` FROM schools WHERE cohortid = $1`, cohortID)
	s, err := scanSchool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (st *Store) InsertSchool(ctx context.Context, s *models.School) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var id int64
	err := st.db.QueryRowContext(ctx, `
INSERT INTO schools (schoolno, name, moeid, cohortid, smsid, transferin, transferout, suspend)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		s.SchoolNo, s.Name, s.MoeID, s.CohortID, s.SMSID, s.TransferIn, s.TransferOut, s.Suspend).Scan(&id)
	return id, err
}

func (st *Store) UpdateSchool(ctx context.Context, s *models.School) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `
UPDATE schools
SET schoolno = $2, name = $3, moeid = $4, cohortid = $5, smsid = $6,
    transferin = $7, transferout = $8, suspend = $9, timemodified = now()
WHERE id = $1`,
		s.ID, s.SchoolNo, s.Name, s.MoeID, s.CohortID, s.SMSID,
		s.TransferIn, s.TransferOut, s.Suspend)
	return err
}

func (st *Store) DeleteSchool(ctx context.Context, id int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := st.db.ExecContext(ctx, `DELETE FROM schools WHERE id = $1`, id)
	return err
}

func (st *Store) VendorConfig(ctx context.Context, id int64) (*models.VendorConfig, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var c models.VendorConfig
	err := st.db.QueryRowContext(ctx, `
SELECT id, name, smskey, smssecret, url1, url2, url3 FROM sms_config WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Key, &c.Secret, &c.URL1, &c.URL2, &c.URL3)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
