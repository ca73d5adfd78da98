package app

import (
	"context"

	"github.com/hylla/ewtrail/internal/domain"
)

// CreateHub registers a hub.
func (s *Service) CreateHub(ctx context.Context, name, city string) (domain.Hub, error) {
	hub, err := domain.NewHub(s.idGen(), name, city, s.clock())
	if err != nil {
		return domain.Hub{}, invalidInput(err)
	}
	if err := s.store.CreateHub(ctx, hub); err != nil {
		return domain.Hub{}, err
	}
	return hub, nil
}

// CreateRecycler registers a recycler.
func (s *Service) CreateRecycler(ctx context.Context, name, licenseNumber string) (domain.Recycler, error) {
	recycler, err := domain.NewRecycler(s.idGen(), name, licenseNumber, s.clock())
	if err != nil {
		return domain.Recycler{}, invalidInput(err)
	}
	if err := s.store.CreateRecycler(ctx, recycler); err != nil {
		return domain.Recycler{}, err
	}
	return recycler, nil
}

// CreateMaterialCategory registers a material category under a caller-chosen id.
func (s *Service) CreateMaterialCategory(ctx context.Context, id, name string) (domain.MaterialCategory, error) {
	category, err := domain.NewMaterialCategory(id, name, s.clock())
	if err != nil {
		return domain.MaterialCategory{}, invalidInput(err)
	}
	if err := s.store.CreateMaterialCategory(ctx, category); err != nil {
		return domain.MaterialCategory{}, err
	}
	return category, nil
}

// CreateUser registers an operator.
func (s *Service) CreateUser(ctx context.Context, name string, role domain.UserRole) (domain.User, error) {
	user, err := domain.NewUser(s.idGen(), name, role, s.clock())
	if err != nil {
		return domain.User{}, invalidInput(err)
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// CreateBrand registers a brand that can be credited with recycled weight.
func (s *Service) CreateBrand(ctx context.Context, name, eprRegistrationNumber string) (domain.Brand, error) {
	brand, err := domain.NewBrand(s.idGen(), name, eprRegistrationNumber, s.clock())
	if err != nil {
		return domain.Brand{}, invalidInput(err)
	}
	if err := s.store.CreateBrand(ctx, brand); err != nil {
		return domain.Brand{}, err
	}
	return brand, nil
}
