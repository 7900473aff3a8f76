package tenants

import (
	"context"
	"database/sql"
	"errors"

	"call-assistant/pkg/utils"
)

// PostgresDirectory reads tenant profiles from the tables in schema/postgres.sql.
// The profile, staff and payment rows are read in one read-only snapshot.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) LookupByPhone(ctx context.Context, number string) (Profile, bool, error) {
	var (
		p     Profile
		found bool
	)
	err := utils.WithTx(ctx, d.db, utils.ReadOnlySnapshot, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		p, found, err = selectTenant(ctx, tx, number)
		if err != nil || !found {
			return err
		}
		if p.Staff, err = selectStaff(ctx, tx, p.ID); err != nil {
			return err
		}
		p.AcceptedPayments, err = selectPayments(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return Profile{}, false, err
	}
	return p, found, nil
}

func selectTenant(ctx context.Context, tx *sql.Tx, number string) (Profile, bool, error) {
	const q = `
SELECT id, display_name, phone_number, hours, address
FROM tenants
WHERE phone_number = $1
`
	var p Profile
	if err := tx.QueryRowContext(ctx, q, number).Scan(
		&p.ID,
		&p.DisplayName,
		&p.PhoneNumber,
		&p.Hours,
		&p.Address,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	return p, true, nil
}

func selectStaff(ctx context.Context, tx *sql.Tx, tenantID string) ([]StaffMember, error) {
	const q = `
SELECT name, specialty, scheduling_policy
FROM tenant_staff
WHERE tenant_id = $1
ORDER BY position
`
	rows, err := tx.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StaffMember
	for rows.Next() {
		var s StaffMember
		if err := rows.Scan(&s.Name, &s.Specialty, &s.SchedulingPolicy); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func selectPayments(ctx context.Context, tx *sql.Tx, tenantID string) ([]string, error) {
	const q = `
SELECT name
FROM tenant_payments
WHERE tenant_id = $1
ORDER BY name
`
	rows, err := tx.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
