package app

import (
	"context"
	"time"

	"formbuilder/api/internal/audit"
	"formbuilder/api/internal/forms"
	"formbuilder/api/internal/rbac"
	"formbuilder/api/internal/store"
	"go.uber.org/zap"
)

type templateStore interface {
	Ping(ctx context.Context) error
	FindTemplate(ctx context.Context, id string) (*store.Template, error)
	FindTemplateWithUsers(ctx context.Context, id string) (*store.Template, []store.User, error)
	CreateTemplate(ctx context.Context, item store.NewTemplate) (store.Template, error)
	UpdateTemplate(ctx context.Context, id string, patch store.TemplatePatch) (*store.Template, error)
	UpdateTemplateUsers(ctx context.Context, id string, connect, disconnect []string) (*store.Template, []store.User, error)
	ListTemplates(ctx context.Context, filter store.TemplateFilter) ([]store.Template, error)
}

// FormCache is consulted before persistence and invalidated after every
// committed write.
type FormCache interface {
	Check(ctx context.Context, id string) (*forms.Record, bool)
	Generation(ctx context.Context, id string) int64
	Fill(ctx context.Context, record forms.Record, generation int64)
	Invalidate(ctx context.Context, id string)
}

type AuditSink interface {
	Record(actorID string, target audit.Target, event audit.Event, detail string)
}

// ResponseStore is the vault holding submitted responses.
type ResponseStore interface {
	CountUnprocessed(ctx context.Context, ability rbac.Evaluator, formID string, bypassCache bool) (int, error)
	PurgeDraftResponses(ctx context.Context, ability rbac.Evaluator, formID string) error
}

type Options struct {
	// PurgeOnPublish deletes responses collected in draft mode before a
	// template is published.
	PurgeOnPublish  bool
	SoftDeleteGrace time.Duration
	Logger          *zap.Logger
	Now             func() time.Time
}

type Service struct {
	store     templateStore
	cache     FormCache
	audit     AuditSink
	responses ResponseStore
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time

	purgeOnPublish  bool
	softDeleteGrace time.Duration
}

func New(templates templateStore, cache FormCache, auditSink AuditSink, responses ResponseStore, notifier Notifier, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	grace := opts.SoftDeleteGrace
	if grace <= 0 {
		grace = 30 * 24 * time.Hour
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		store:           templates,
		cache:           cache,
		audit:           auditSink,
		responses:       responses,
		notifier:        notifier,
		logger:          logger,
		now:             now,
		purgeOnPublish:  opts.PurgeOnPublish,
		softDeleteGrace: grace,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// authorize evaluates the requests and, on denial, records the attempt
// before returning an access-denied error.
func (s *Service) authorize(ability rbac.Evaluator, target audit.Target, attempted string, requests ...rbac.Request) error {
	if err := ability.Evaluate(requests...); err != nil {
		s.denied(ability, target, attempted)
		return accessDenied(err)
	}
	return nil
}

func (s *Service) denied(ability rbac.Evaluator, target audit.Target, attempted string) {
	s.audit.Record(ability.UserID(), target, audit.AccessDenied, attempted)
}

func (s *Service) invalidate(ctx context.Context, formID string) {
	s.cache.Invalidate(ctx, formID)
}

// loadWithOwners returns nil for missing and soft-deleted templates.
func (s *Service) loadWithOwners(ctx context.Context, formID string) (*forms.RecordWithOwners, error) {
	row, users, err := s.store.FindTemplateWithUsers(ctx, formID)
	if err != nil {
		return nil, storageFailure("load form", err)
	}
	if row == nil || row.Deleted() {
		return nil, nil
	}
	return &forms.RecordWithOwners{Record: row.Record(), Users: owners(users)}, nil
}

func owners(users []store.User) []forms.Owner {
	items := make([]forms.Owner, 0, len(users))
	for _, user := range users {
		items = append(items, user.Owner())
	}
	return items
}

func records(rows []store.Template) []forms.Record {
	items := make([]forms.Record, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Record())
	}
	return items
}

func ownedBy(item *forms.RecordWithOwners) *rbac.Object {
	return &rbac.Object{Users: item.OwnerIDs()}
}

// anyForm asks whether the principal may act on every template, not just
// the ones it owns.
func anyForm() *rbac.Object {
	return &rbac.Object{}
}

func formRequest(action rbac.Action, object *rbac.Object, field string) rbac.Request {
	return rbac.Request{Action: action, Subject: rbac.SubjectFormRecord, Object: object, Field: field}
}
