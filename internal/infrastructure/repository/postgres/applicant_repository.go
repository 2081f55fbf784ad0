package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

// ApplicantRepository reads applicant, formasi and province reference data.
type ApplicantRepository struct {
	db *sql.DB
}

func NewApplicantRepository(db *sql.DB) *ApplicantRepository {
	return &ApplicantRepository{db: db}
}

func (r *ApplicantRepository) GetApplicant(ctx context.Context, id string) (*domain.Applicant, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, full_name, nik, birth_date, education_level, major, domicile_province
FROM applicants
WHERE id = $1
`, id)

	var (
		a         domain.Applicant
		nik       sql.NullString
		birthDate sql.NullTime
		level     sql.NullString
		major     sql.NullString
		province  sql.NullString
	)
	err := row.Scan(&a.ID, &a.FullName, &nik, &birthDate, &level, &major, &province)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get applicant", fmt.Errorf("applicant %s", id))
		}
		return nil, fmt.Errorf("scan applicant: %w", err)
	}
	a.NIK = nik.String
	a.EducationLevel = level.String
	a.Major = major.String
	a.DomicileProvince = province.String
	if birthDate.Valid {
		a.BirthDate = birthDate.Time.Format("2006-01-02")
	}
	return &a, nil
}

func (r *ApplicantRepository) GetFormasi(ctx context.Context, id string) (*domain.Formasi, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, agency, education_levels, majors, min_age, max_age, province
FROM formasi
WHERE id = $1
`, id)

	var (
		f         domain.Formasi
		agency    sql.NullString
		levelsRaw []byte
		majorsRaw []byte
		province  sql.NullString
	)
	err := row.Scan(&f.ID, &f.Title, &agency, &levelsRaw, &majorsRaw, &f.MinAge, &f.MaxAge, &province)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get formasi", fmt.Errorf("formasi %s", id))
		}
		return nil, fmt.Errorf("scan formasi: %w", err)
	}
	if err := unmarshalList(levelsRaw, &f.EducationLevels); err != nil {
		return nil, fmt.Errorf("unmarshal education levels: %w", err)
	}
	if err := unmarshalList(majorsRaw, &f.Majors); err != nil {
		return nil, fmt.Errorf("unmarshal majors: %w", err)
	}
	f.Agency = agency.String
	f.Province = province.String
	return &f, nil
}

func (r *ApplicantRepository) ListProvinces(ctx context.Context) ([]domain.Province, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM provinces ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query provinces: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Province, 0, 38)
	for rows.Next() {
		var p domain.Province
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan province: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provinces: %w", err)
	}
	return out, nil
}

func unmarshalList(raw []byte, out *[]string) error {
	if len(raw) == 0 {
		*out = []string{}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return err
	}
	if *out == nil {
		*out = []string{}
	}
	return nil
}
