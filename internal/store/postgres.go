package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"formbuilder/api/internal/forms"
	"formbuilder/api/internal/util"
)

// ErrUnknownUser is returned when an ownership change names a user id that
// does not exist.
var ErrUnknownUser = errors.New("unknown user")

// ErrNotFound is returned by lookups that cannot report absence with nil.
var ErrNotFound = errors.New("not found")

// ErrPublished is returned when a patch that requires a draft meets a
// published template.
var ErrPublished = errors.New("template is published")

const pgForeignKeyViolation = "23503"

const templateColumns = `
	t.id, t.created_at, t.updated_at, t.name, t.json_config, t.is_published,
	t.security_attribute, t.form_purpose, t.closing_date, t.ttl,
	d.email_address, d.email_subject_en, d.email_subject_fr
`

const templateFrom = `
	FROM templates t
	LEFT JOIN delivery_options d ON d.template_id = t.id
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (Template, error) {
	var (
		item           Template
		jsonConfig     []byte
		closingDate    sql.NullTime
		ttl            sql.NullTime
		emailAddress   sql.NullString
		emailSubjectEn sql.NullString
		emailSubjectFr sql.NullString
	)
	if err := row.Scan(
		&item.ID,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.Name,
		&jsonConfig,
		&item.IsPublished,
		&item.SecurityAttribute,
		&item.FormPurpose,
		&closingDate,
		&ttl,
		&emailAddress,
		&emailSubjectEn,
		&emailSubjectFr,
	); err != nil {
		return Template{}, err
	}
	item.JSONConfig = json.RawMessage(jsonConfig)
	if closingDate.Valid {
		value := closingDate.Time
		item.ClosingDate = &value
	}
	if ttl.Valid {
		value := ttl.Time
		item.TTL = &value
	}
	if emailAddress.Valid {
		item.DeliveryOption = &DeliveryOption{
			EmailAddress:   emailAddress.String,
			EmailSubjectEn: emailSubjectEn.String,
			EmailSubjectFr: emailSubjectFr.String,
		}
	}
	return item, nil
}

// FindTemplate returns the row for id, soft-deleted or not, or nil when
// there is no such row.
func (s *PostgresStore) FindTemplate(ctx context.Context, id string) (*Template, error) {
	item, err := scanTemplate(s.db.QueryRowContext(ctx, `SELECT `+templateColumns+templateFrom+` WHERE t.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) FindTemplateWithUsers(ctx context.Context, id string) (*Template, []User, error) {
	item, err := s.FindTemplate(ctx, id)
	if err != nil || item == nil {
		return item, nil, err
	}
	users, err := listTemplateUsers(ctx, s.db, id)
	if err != nil {
		return nil, nil, err
	}
	return item, users, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listTemplateUsers(ctx context.Context, q queryer, templateID string) ([]User, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT u.id, COALESCE(u.name, ''), u.email, u.privileges, u.created_at
		FROM template_users tu
		JOIN users u ON u.id = tu.user_id
		WHERE tu.template_id = $1
		ORDER BY u.email
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list template users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	users := make([]User, 0)
	for rows.Next() {
		var (
			user          User
			privilegesRaw []byte
		)
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &privilegesRaw, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		_ = json.Unmarshal(privilegesRaw, &user.Privileges)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) CreateTemplate(ctx context.Context, item NewTemplate) (Template, error) {
	securityAttribute := item.SecurityAttribute
	if securityAttribute == "" {
		securityAttribute = string(forms.Unclassified)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Template{}, fmt.Errorf("begin create template: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := util.NewID("")
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO templates (id, name, json_config, security_attribute, form_purpose)
		VALUES ($1, $2, $3, $4, $5)
	`, id, item.Name, []byte(item.JSONConfig), securityAttribute, item.FormPurpose); err != nil {
		return Template{}, fmt.Errorf("insert template: %w", err)
	}
	if item.DeliveryOption != nil {
		if err := upsertDeliveryOption(ctx, tx, id, item.DeliveryOption); err != nil {
			return Template{}, err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO template_users (template_id, user_id) VALUES ($1, $2)
	`, id, item.OwnerID); err != nil {
		return Template{}, mapUserError("assign template owner", err)
	}

	created, err := scanTemplate(tx.QueryRowContext(ctx, `SELECT `+templateColumns+templateFrom+` WHERE t.id = $1`, id))
	if err != nil {
		return Template{}, fmt.Errorf("read created template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Template{}, fmt.Errorf("commit create template: %w", err)
	}
	return created, nil
}

// UpdateTemplate applies the patch in one transaction. It returns nil when
// the template does not exist or is soft-deleted.
func (s *PostgresStore) UpdateTemplate(ctx context.Context, id string, patch TemplatePatch) (*Template, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update template: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := lockTemplate(ctx, tx, id)
	if err != nil || current == nil {
		return nil, err
	}
	if patch.RequireDraft && current.IsPublished {
		return nil, fmt.Errorf("update template %s: %w", id, ErrPublished)
	}
	next := patch.Apply(*current)

	if _, err := tx.ExecContext(ctx, `
		UPDATE templates
		SET name=$2, json_config=$3, is_published=$4, security_attribute=$5,
			form_purpose=$6, closing_date=$7, ttl=$8, updated_at=NOW()
		WHERE id=$1
	`, id, next.Name, []byte(next.JSONConfig), next.IsPublished, next.SecurityAttribute,
		next.FormPurpose, nullTime(next.ClosingDate), nullTime(next.TTL)); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}

	if value, ok := patch.DeliveryOption.Get(); ok {
		if value == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM delivery_options WHERE template_id=$1`, id); err != nil {
				return nil, fmt.Errorf("delete delivery option: %w", err)
			}
		} else if err := upsertDeliveryOption(ctx, tx, id, value); err != nil {
			return nil, err
		}
	}

	updated, err := scanTemplate(tx.QueryRowContext(ctx, `SELECT `+templateColumns+templateFrom+` WHERE t.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("read updated template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update template: %w", err)
	}
	return &updated, nil
}

// UpdateTemplateUsers connects and disconnects owners in one transaction and
// returns the template with its resulting owner set.
func (s *PostgresStore) UpdateTemplateUsers(ctx context.Context, id string, connect, disconnect []string) (*Template, []User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin update template users: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := lockTemplate(ctx, tx, id)
	if err != nil || current == nil {
		return nil, nil, err
	}

	for _, userID := range connect {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO template_users (template_id, user_id) VALUES ($1, $2)
			ON CONFLICT (template_id, user_id) DO NOTHING
		`, id, userID); err != nil {
			return nil, nil, mapUserError("connect template user", err)
		}
	}
	if len(disconnect) > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM template_users WHERE template_id=$1 AND user_id = ANY($2)
		`, id, disconnect); err != nil {
			return nil, nil, fmt.Errorf("disconnect template users: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE templates SET updated_at=NOW() WHERE id=$1`, id); err != nil {
		return nil, nil, fmt.Errorf("touch template: %w", err)
	}

	updated, err := scanTemplate(tx.QueryRowContext(ctx, `SELECT `+templateColumns+templateFrom+` WHERE t.id = $1`, id))
	if err != nil {
		return nil, nil, fmt.Errorf("read updated template: %w", err)
	}
	users, err := listTemplateUsers(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit update template users: %w", err)
	}
	return &updated, users, nil
}

func lockTemplate(ctx context.Context, tx *sql.Tx, id string) (*Template, error) {
	item, err := scanTemplate(tx.QueryRowContext(ctx, `
		SELECT `+templateColumns+templateFrom+`
		WHERE t.id = $1 AND t.ttl IS NULL
		FOR UPDATE OF t
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock template: %w", err)
	}
	return &item, nil
}

func upsertDeliveryOption(ctx context.Context, tx *sql.Tx, templateID string, option *forms.DeliveryOption) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO delivery_options (template_id, email_address, email_subject_en, email_subject_fr)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (template_id) DO UPDATE
		SET email_address=EXCLUDED.email_address,
			email_subject_en=EXCLUDED.email_subject_en,
			email_subject_fr=EXCLUDED.email_subject_fr
	`, templateID, option.EmailAddress, nilIfEmpty(option.EmailSubjectEn), nilIfEmpty(option.EmailSubjectFr))
	if err != nil {
		return fmt.Errorf("upsert delivery option: %w", err)
	}
	return nil
}

// ListTemplates never returns soft-deleted rows.
func (s *PostgresStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]Template, error) {
	var (
		conditions = []string{"t.ttl IS NULL"}
		args       []any
	)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM template_users tu WHERE tu.template_id = t.id AND tu.user_id = $%d)", len(args)))
	}
	if filter.Published != nil {
		args = append(args, *filter.Published)
		conditions = append(conditions, fmt.Sprintf("t.is_published = $%d", len(args)))
	}

	query := `SELECT ` + templateColumns + templateFrom + ` WHERE ` + strings.Join(conditions, " AND ")
	switch filter.Sort {
	case forms.SortAsc:
		query += ` ORDER BY t.updated_at ASC`
	case forms.SortDesc:
		query += ` ORDER BY t.updated_at DESC`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	items := make([]Template, 0)
	for rows.Next() {
		item, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertAuditEvent(ctx context.Context, event AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (actor_id, target_type, target_id, event, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ActorID, event.TargetType, nilIfEmpty(event.TargetID), event.Event, nilIfEmpty(event.Detail))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, targetID string, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, target_type, COALESCE(target_id, ''), event, COALESCE(detail, ''), created_at
		FROM audit_events
		WHERE target_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	items := make([]AuditEvent, 0)
	for rows.Next() {
		var item AuditEvent
		if err := rows.Scan(&item.ID, &item.ActorID, &item.TargetType, &item.TargetID, &item.Event, &item.Detail, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountUnprocessedResponses(ctx context.Context, templateID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM form_responses
		WHERE template_id = $1 AND status IN ($2, $3, $4)
	`, templateID, ResponseStatusNew, ResponseStatusDownloaded, ResponseStatusProblem).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unprocessed responses: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) DeleteResponses(ctx context.Context, templateID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM form_responses WHERE template_id = $1`, templateID)
	if err != nil {
		return 0, fmt.Errorf("delete responses: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete responses: %w", err)
	}
	return deleted, nil
}

func (s *PostgresStore) InsertResponse(ctx context.Context, response FormResponse) (string, error) {
	id := response.ID
	if id == "" {
		id = util.NewID("resp")
	}
	status := response.Status
	if status == "" {
		status = ResponseStatusNew
	}
	payload := []byte(response.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO form_responses (id, template_id, status, payload)
		VALUES ($1, $2, $3, $4)
	`, id, response.TemplateID, status, payload)
	if err != nil {
		return "", fmt.Errorf("insert response: %w", err)
	}
	return id, nil
}

func mapUserError(action string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%s: %w", action, ErrUnknownUser)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func nullTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

func nilIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
