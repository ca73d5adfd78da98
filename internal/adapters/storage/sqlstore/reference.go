package sqlstore

import (
	"context"
	"fmt"

	"github.com/hylla/ewtrail/internal/domain"
)

// CreateHub inserts a hub.
func (r *Repository) CreateHub(ctx context.Context, h domain.Hub) error {
	_, err := r.exec(ctx, `
		INSERT INTO hubs(id, name, city, created_at)
		VALUES (?, ?, ?, ?)
	`, h.ID, h.Name, h.City, ts(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert hub: %w", err)
	}
	return nil
}

// GetHub loads a hub by id.
func (r *Repository) GetHub(ctx context.Context, id string) (domain.Hub, error) {
	var (
		h         domain.Hub
		createdAt string
	)
	err := r.queryRow(ctx, `SELECT id, name, city, created_at FROM hubs WHERE id = ?`, id).
		Scan(&h.ID, &h.Name, &h.City, &createdAt)
	if err != nil {
		return domain.Hub{}, noRows(err)
	}
	if h.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.Hub{}, err
	}
	return h, nil
}

// CreateRecycler inserts a recycler.
func (r *Repository) CreateRecycler(ctx context.Context, rc domain.Recycler) error {
	_, err := r.exec(ctx, `
		INSERT INTO recyclers(id, name, license_number, created_at)
		VALUES (?, ?, ?, ?)
	`, rc.ID, rc.Name, rc.LicenseNumber, ts(rc.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert recycler: %w", err)
	}
	return nil
}

// GetRecycler loads a recycler by id.
func (r *Repository) GetRecycler(ctx context.Context, id string) (domain.Recycler, error) {
	var (
		rc        domain.Recycler
		createdAt string
	)
	err := r.queryRow(ctx, `SELECT id, name, license_number, created_at FROM recyclers WHERE id = ?`, id).
		Scan(&rc.ID, &rc.Name, &rc.LicenseNumber, &createdAt)
	if err != nil {
		return domain.Recycler{}, noRows(err)
	}
	if rc.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.Recycler{}, err
	}
	return rc, nil
}

// CreateMaterialCategory inserts a material category.
func (r *Repository) CreateMaterialCategory(ctx context.Context, c domain.MaterialCategory) error {
	_, err := r.exec(ctx, `
		INSERT INTO material_categories(id, name, created_at)
		VALUES (?, ?, ?)
	`, c.ID, c.Name, ts(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert material category: %w", err)
	}
	return nil
}

// GetMaterialCategory loads a material category by id.
func (r *Repository) GetMaterialCategory(ctx context.Context, id string) (domain.MaterialCategory, error) {
	var (
		c         domain.MaterialCategory
		createdAt string
	)
	err := r.queryRow(ctx, `SELECT id, name, created_at FROM material_categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &createdAt)
	if err != nil {
		return domain.MaterialCategory{}, noRows(err)
	}
	if c.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.MaterialCategory{}, err
	}
	return c, nil
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.exec(ctx, `
		INSERT INTO users(id, name, role, created_at)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Name, string(u.Role), ts(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser loads a user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	var (
		u         domain.User
		role      string
		createdAt string
	)
	err := r.queryRow(ctx, `SELECT id, name, role, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &role, &createdAt)
	if err != nil {
		return domain.User{}, noRows(err)
	}
	u.Role = domain.UserRole(role)
	if u.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
