package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	var ok bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("lookup %s %s: %w", table, id, err)
	}
	return ok, nil
}

func (p *Postgres) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return p.exists(ctx, "patients", id)
}

func (p *Postgres) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return p.exists(ctx, "doctors", id)
}

func (p *Postgres) DepartmentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return p.exists(ctx, "departments", id)
}

func (p *Postgres) InsertDepartment(ctx context.Context, d Department) (uuid.UUID, error) {
	var id uuid.UUID
	err := p.pool.QueryRow(ctx, `
		INSERT INTO departments (id, name, description)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (name) DO UPDATE SET updated_at = now()
		RETURNING id
	`, d.ID, d.Name, d.Description).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert department: %w", err)
	}
	return id, nil
}

func (p *Postgres) InsertDoctor(ctx context.Context, d Doctor) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO doctors (id, department_id, name, title, specialty)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.DepartmentID, d.Name, d.Title, d.Specialty)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (p *Postgres) InsertPatient(ctx context.Context, pt Patient) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO patients (id, name, phone)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (id) DO NOTHING
	`, pt.ID, pt.Name, pt.Phone)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// ListDoctors returns every doctor, used by the seed and simulate tools.
func (p *Postgres) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, department_id, name, COALESCE(title, ''), COALESCE(specialty, '')
		FROM doctors
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.DepartmentID, &d.Name, &d.Title, &d.Specialty); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) ListPatientIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM patients ORDER BY created_at LIMIT NULLIF($1, 0)`, limit)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
