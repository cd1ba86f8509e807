// Package vault answers questions about the responses a template has
// collected in the internal response store.
package vault

import (
	"context"
	"fmt"

	"formbuilder/api/internal/rbac"
	"formbuilder/api/internal/store"
	"go.uber.org/zap"
)

type Store interface {
	FindTemplateWithUsers(ctx context.Context, id string) (*store.Template, []store.User, error)
	CountUnprocessedResponses(ctx context.Context, templateID string) (int, error)
	DeleteResponses(ctx context.Context, templateID string) (int64, error)
}

type CountCache interface {
	Unprocessed(ctx context.Context, id string) (int, bool)
	SetUnprocessed(ctx context.Context, id string, count int)
	InvalidateUnprocessed(ctx context.Context, id string)
}

type Service struct {
	store  Store
	counts CountCache
	logger *zap.Logger
}

func NewService(s Store, counts CountCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, counts: counts, logger: logger}
}

// CountUnprocessed returns how many responses have not been confirmed.
// bypassCache forces a read from the response store.
func (s *Service) CountUnprocessed(ctx context.Context, ability rbac.Evaluator, formID string, bypassCache bool) (int, error) {
	if err := s.authorize(ctx, ability, formID, rbac.ActionView); err != nil {
		return 0, err
	}

	if !bypassCache && s.counts != nil {
		if count, ok := s.counts.Unprocessed(ctx, formID); ok {
			return count, nil
		}
	}

	count, err := s.store.CountUnprocessedResponses(ctx, formID)
	if err != nil {
		return 0, err
	}
	if s.counts != nil {
		s.counts.SetUnprocessed(ctx, formID, count)
	}
	return count, nil
}

// PurgeDraftResponses removes every response collected so far.
func (s *Service) PurgeDraftResponses(ctx context.Context, ability rbac.Evaluator, formID string) error {
	if err := s.authorize(ctx, ability, formID, rbac.ActionUpdate); err != nil {
		return err
	}

	deleted, err := s.store.DeleteResponses(ctx, formID)
	if err != nil {
		return err
	}
	if s.counts != nil {
		s.counts.InvalidateUnprocessed(ctx, formID)
	}
	s.logger.Info("draft responses purged",
		zap.String("form_id", formID),
		zap.String("actor_id", ability.UserID()),
		zap.Int64("deleted", deleted),
	)
	return nil
}

func (s *Service) authorize(ctx context.Context, ability rbac.Evaluator, formID string, action rbac.Action) error {
	row, users, err := s.store.FindTemplateWithUsers(ctx, formID)
	if err != nil {
		return err
	}
	if row == nil || row.Deleted() {
		return fmt.Errorf("form %s: %w", formID, store.ErrNotFound)
	}
	owners := make([]string, 0, len(users))
	for _, user := range users {
		owners = append(owners, user.ID)
	}
	return ability.Evaluate(rbac.Request{
		Action:  action,
		Subject: rbac.SubjectFormRecord,
		Object:  &rbac.Object{Users: owners},
	})
}
