package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rescuelog/backend/internal/db"
	"github.com/rescuelog/backend/internal/model"
)

var ErrGuideNotFound = errors.New("condition not found")

type FirstAidRepository interface {
	SearchFirstAidGuides(ctx context.Context, search string) ([]model.FirstAidGuide, error)
	GetFirstAidGuide(ctx context.Context, condition string) (*model.FirstAidGuide, error)
}

type FirstAidService struct {
	repo FirstAidRepository
}

func NewFirstAidService(repo FirstAidRepository) *FirstAidService {
	return &FirstAidService{repo: repo}
}

func (s *FirstAidService) Search(ctx context.Context, search string) ([]model.FirstAidGuide, error) {
	return s.repo.SearchFirstAidGuides(ctx, strings.TrimSpace(search))
}

func (s *FirstAidService) Get(ctx context.Context, condition string) (*model.FirstAidGuide, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, ErrGuideNotFound
	}
	g, err := s.repo.GetFirstAidGuide(ctx, condition)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}
	return g, nil
}
