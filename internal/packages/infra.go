package packages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, pkg *Package) error {
	query := `
		INSERT INTO credit_packages (name, credits, price, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	return r.db.QueryRowContext(
		ctx,
		query,
		pkg.Name,
		pkg.Credits,
		pkg.Price,
		pkg.Active,
	).Scan(&pkg.ID, &pkg.CreatedAt)
}

func (r *repo) Update(ctx context.Context, pkg *Package) error {
	query := `
		UPDATE credit_packages
		SET name = $1,
		    credits = $2,
		    price = $3,
		    active = $4
		WHERE id = $5
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		pkg.Name,
		pkg.Credits,
		pkg.Price,
		pkg.Active,
		pkg.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrPackageNotFound, pkg.ID)
	}
	return nil
}

func (r *repo) GetByID(ctx context.Context, id int64) (*Package, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, credits, price, active, created_at
		FROM credit_packages
		WHERE id = $1
	`, id)

	var pkg Package
	err := row.Scan(
		&pkg.ID,
		&pkg.Name,
		&pkg.Credits,
		&pkg.Price,
		&pkg.Active,
		&pkg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrPackageNotFound, id)
		}
		return nil, err
	}

	return &pkg, nil
}

func (r *repo) List(ctx context.Context, onlyActive bool) ([]*Package, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, credits, price, active, created_at
		FROM credit_packages
		WHERE active OR NOT $1
		ORDER BY credits ASC
	`, onlyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Package

	for rows.Next() {
		var pkg Package
		if err := rows.Scan(
			&pkg.ID,
			&pkg.Name,
			&pkg.Credits,
			&pkg.Price,
			&pkg.Active,
			&pkg.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &pkg)
	}

	return out, rows.Err()
}

func (r *repo) SavePayment(ctx context.Context, p *Payment) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO payments (id, user_id, package_id, credits, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, p.ID, p.UserID, p.PackageID, p.Credits, p.Status).Scan(&p.CreatedAt)
}

func (r *repo) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var (
		p      Payment
		paidAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, package_id, credits, status, created_at, paid_at
		FROM payments
		WHERE id = $1
	`, id).Scan(&p.ID, &p.UserID, &p.PackageID, &p.Credits, &p.Status, &p.CreatedAt, &paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
		}
		return nil, err
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return &p, nil
}

func (r *repo) MarkPayment(ctx context.Context, id, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    paid_at = CASE WHEN $2 = 'succeeded' THEN now() ELSE paid_at END
		WHERE id = $1 AND status = 'pending'
	`, id, status)
	if err != nil {
		return false, fmt.Errorf("mark payment: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
