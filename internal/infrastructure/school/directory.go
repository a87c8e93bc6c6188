package school

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory answers guardian-student link checks against the enrollment
// table maintained by the school registrar.
type Directory struct {
	db *pgxpool.Pool
}

func NewDirectory(db *pgxpool.Pool) *Directory {
	return &Directory{db: db}
}

func (d *Directory) IsGuardianOf(ctx context.Context, parentID, studentID string) (bool, error) {
	var linked bool
	err := d.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM guardian_students
			WHERE guardian_id = $1 AND student_id = $2
		)`,
		parentID, studentID,
	).Scan(&linked)
	if err != nil {
		return false, fmt.Errorf("error checking guardian link: %w", err)
	}
	return linked, nil
}
