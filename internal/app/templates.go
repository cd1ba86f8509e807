package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"formbuilder/api/internal/audit"
	"formbuilder/api/internal/forms"
	"formbuilder/api/internal/rbac"
	"formbuilder/api/internal/store"
	"go.uber.org/zap"
)

// GetByIDInternal reads a template without any permission check. It is for
// callers inside the service boundary only.
func (s *Service) GetByIDInternal(ctx context.Context, formID string) (*forms.Record, error) {
	if cached, ok := s.cache.Check(ctx, formID); ok {
		return cached, nil
	}

	generation := s.cache.Generation(ctx, formID)
	row, err := s.store.FindTemplate(ctx, formID)
	if err != nil {
		return nil, storageFailure("load form", err)
	}
	if row == nil || row.Deleted() {
		return nil, nil
	}

	record := row.Record()
	s.cache.Fill(ctx, record, generation)
	return &record, nil
}

// GetPublicByID returns the public projection of a template, or nil. Lookup
// failures are logged and reported as absent.
func (s *Service) GetPublicByID(ctx context.Context, formID string) *forms.PublicRecord {
	record, err := s.GetByIDInternal(ctx, formID)
	if err != nil {
		s.logger.Error("public form lookup failed", zap.String("form_id", formID), zap.Error(err))
		return nil
	}
	if record == nil {
		return nil
	}
	public := record.Public()
	return &public
}

// GetFullByID reports storage failures as absent after logging them.
func (s *Service) GetFullByID(ctx context.Context, ability rbac.Evaluator, formID string) (*forms.Record, error) {
	item, err := s.loadWithOwners(ctx, formID)
	if err != nil {
		s.logger.Error("form lookup failed", zap.String("form_id", formID), zap.Error(err))
		return nil, nil
	}
	if item == nil {
		return nil, nil
	}

	if err := s.authorize(ability, audit.Form(formID), "Attempted to read form object",
		formRequest(rbac.ActionView, ownedBy(item), "")); err != nil {
		return nil, err
	}

	s.audit.Record(ability.UserID(), audit.Form(formID), audit.ReadForm, "")
	return &item.Record, nil
}

// GetWithAssociatedUsers requires the right to view every template and
// every user.
func (s *Service) GetWithAssociatedUsers(ctx context.Context, ability rbac.Evaluator, formID string) (*forms.RecordWithOwners, error) {
	if err := s.authorize(ability, audit.Form(formID), "Attempted to retrieve users associated with Form",
		formRequest(rbac.ActionView, anyForm(), ""),
		rbac.Request{Action: rbac.ActionView, Subject: rbac.SubjectUser},
	); err != nil {
		return nil, err
	}

	item, err := s.loadWithOwners(ctx, formID)
	if err != nil || item == nil {
		return nil, err
	}
	s.audit.Record(ability.UserID(), audit.Form(formID), audit.ReadForm, "Retrieved users associated with Form")
	return item, nil
}

// ListForPrincipal lists the templates the principal owns. Storage failures
// are logged and yield an empty list.
func (s *Service) ListForPrincipal(ctx context.Context, ability rbac.Evaluator, opts forms.ListOptions) ([]forms.Record, error) {
	if err := s.authorize(ability, audit.Target{Type: "Form"}, "Attempted to list all Forms for User",
		formRequest(rbac.ActionView, nil, "")); err != nil {
		return nil, err
	}

	rows, err := s.store.ListTemplates(ctx, store.TemplateFilter{
		OwnerID:   ability.UserID(),
		Published: opts.Published,
		Sort:      opts.SortByDateUpdated,
	})
	if err != nil {
		s.logger.Error("list forms for user failed", zap.String("user_id", ability.UserID()), zap.Error(err))
		return []forms.Record{}, nil
	}

	if len(rows) > 0 {
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		s.audit.Record(ability.UserID(), audit.Target{Type: "Form"}, audit.ReadForm,
			"Accessed Forms: "+strings.Join(ids, ","))
	}
	return records(rows), nil
}

// ListAll lists every live template in the system.
func (s *Service) ListAll(ctx context.Context, ability rbac.Evaluator, opts forms.ListOptions) ([]forms.Record, error) {
	if err := s.authorize(ability, audit.Target{Type: "Form"}, "Attempted to list all Forms",
		formRequest(rbac.ActionView, anyForm(), "")); err != nil {
		return nil, err
	}

	rows, err := s.store.ListTemplates(ctx, store.TemplateFilter{
		Published: opts.Published,
		Sort:      opts.SortByDateUpdated,
	})
	if err != nil {
		s.logger.Error("list all forms failed", zap.Error(err))
		return []forms.Record{}, nil
	}

	if len(rows) > 0 {
		s.audit.Record(ability.UserID(), audit.Target{Type: "Form"}, audit.ReadForm, "Accessed Forms: All System Forms")
	}
	return records(rows), nil
}

type CreateCommand struct {
	Ability           rbac.Evaluator
	FormConfig        json.RawMessage
	Name              string
	DeliveryOption    *forms.DeliveryOption
	SecurityAttribute forms.SecurityAttribute
	FormPurpose       string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*forms.Record, error) {
	if err := s.authorize(cmd.Ability, audit.Target{Type: "Form"}, "Attempted to create a Form",
		formRequest(rbac.ActionCreate, nil, "")); err != nil {
		return nil, err
	}

	if err := validateFormConfig(cmd.FormConfig); err != nil {
		return nil, err
	}
	if cmd.DeliveryOption != nil {
		if err := validateDeliveryOption(*cmd.DeliveryOption); err != nil {
			return nil, err
		}
	}
	if cmd.SecurityAttribute != "" && !cmd.SecurityAttribute.Valid() {
		return nil, invalidSecurityAttribute(cmd.SecurityAttribute)
	}

	row, err := s.store.CreateTemplate(ctx, store.NewTemplate{
		OwnerID:           cmd.Ability.UserID(),
		JSONConfig:        cmd.FormConfig,
		Name:              cmd.Name,
		DeliveryOption:    cmd.DeliveryOption,
		SecurityAttribute: string(cmd.SecurityAttribute),
		FormPurpose:       cmd.FormPurpose,
	})
	if err != nil {
		if errors.Is(err, store.ErrUnknownUser) {
			return nil, invalidInput("Unknown user", map[string]any{"userId": cmd.Ability.UserID()})
		}
		return nil, storageFailure("create form", err)
	}

	s.audit.Record(cmd.Ability.UserID(), audit.Form(row.ID), audit.CreateForm, "")
	record := row.Record()
	return &record, nil
}

// UpdateCommand overwrites only the fields that are set.
type UpdateCommand struct {
	Ability           rbac.Evaluator
	FormID            string
	FormConfig        json.RawMessage
	Name              *string
	DeliveryOption    *forms.DeliveryOption
	SecurityAttribute *forms.SecurityAttribute
	FormPurpose       *string
}

func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*forms.Record, error) {
	item, err := s.loadWithOwners(ctx, cmd.FormID)
	if err != nil || item == nil {
		return nil, err
	}

	if err := s.authorize(cmd.Ability, audit.Form(cmd.FormID), "Attempted to update Form",
		formRequest(rbac.ActionUpdate, ownedBy(item), "")); err != nil {
		return nil, err
	}
	if item.Record.IsPublished {
		return nil, alreadyPublished(cmd.FormID)
	}

	patch := store.TemplatePatch{RequireDraft: true}
	if cmd.FormConfig != nil {
		if err := validateFormConfig(cmd.FormConfig); err != nil {
			return nil, err
		}
		patch.JSONConfig = store.Some(cmd.FormConfig)
	}
	if cmd.Name != nil {
		patch.Name = store.Some(*cmd.Name)
	}
	if cmd.DeliveryOption != nil {
		if err := validateDeliveryOption(*cmd.DeliveryOption); err != nil {
			return nil, err
		}
		patch.DeliveryOption = store.Some(cmd.DeliveryOption)
	}
	if cmd.SecurityAttribute != nil {
		if !cmd.SecurityAttribute.Valid() {
			return nil, invalidSecurityAttribute(*cmd.SecurityAttribute)
		}
		patch.SecurityAttribute = store.Some(string(*cmd.SecurityAttribute))
	}
	if cmd.FormPurpose != nil {
		patch.FormPurpose = store.Some(*cmd.FormPurpose)
	}
	if patch.IsEmpty() {
		return nil, invalidInput("Nothing to update", nil)
	}

	row, err := s.store.UpdateTemplate(ctx, cmd.FormID, patch)
	if err != nil {
		return nil, writeFailure(cmd.FormID, "update form", err)
	}
	if row == nil {
		return nil, nil
	}
	s.invalidate(ctx, cmd.FormID)

	actor := cmd.Ability.UserID()
	s.audit.Record(actor, audit.Form(cmd.FormID), audit.ChangeFormName, "Updated Form name to "+row.Name)
	if cmd.DeliveryOption != nil {
		s.audit.Record(actor, audit.Target{Type: "DeliveryOption", ID: cmd.FormID}, audit.ChangeDeliveryOption,
			fmt.Sprintf("Change Delivery Option to: emailAddress: %s, emailSubjectEn: %s, emailSubjectFr: %s",
				cmd.DeliveryOption.EmailAddress, cmd.DeliveryOption.EmailSubjectEn, cmd.DeliveryOption.EmailSubjectFr))
	}
	if cmd.SecurityAttribute != nil {
		s.audit.Record(actor, audit.Target{Type: "SecurityAttribute", ID: cmd.FormID}, audit.ChangeSecurityAttribute,
			"Updated security attribute to "+string(*cmd.SecurityAttribute))
	}
	if cmd.FormConfig != nil || cmd.FormPurpose != nil {
		s.audit.Record(actor, audit.Form(cmd.FormID), audit.UpdateForm, "Form content updated")
	}

	record := row.Record()
	return &record, nil
}

// SetPublished publishes an owned draft, or unpublishes any template when
// the principal manages all forms.
func (s *Service) SetPublished(ctx context.Context, ability rbac.Evaluator, formID string, publish bool) (*forms.Record, error) {
	const attempted = "Attempted to publish form"

	if publish {
		item, err := s.loadWithOwners(ctx, formID)
		if err != nil || item == nil {
			return nil, err
		}
		if err := s.authorize(ability, audit.Form(formID), attempted,
			formRequest(rbac.ActionUpdate, ownedBy(item), rbac.FieldIsPublished)); err != nil {
			return nil, err
		}
		if item.Record.IsPublished {
			return nil, alreadyPublished(formID)
		}
	} else if err := s.authorize(ability, audit.Form(formID), attempted,
		formRequest(rbac.ActionUpdate, anyForm(), "")); err != nil {
		return nil, err
	}

	if publish && s.purgeOnPublish {
		if err := s.responses.PurgeDraftResponses(ctx, ability, formID); err != nil {
			if errors.Is(err, rbac.ErrAccessDenied) {
				s.denied(ability, audit.Form(formID), attempted)
				return nil, accessDenied(err)
			}
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, storageFailure("purge draft responses", err)
		}
	}

	row, err := s.store.UpdateTemplate(ctx, formID, store.TemplatePatch{RequireDraft: publish, IsPublished: store.Some(publish)})
	if err != nil {
		return nil, writeFailure(formID, "publish form", err)
	}
	if row == nil {
		return nil, nil
	}
	s.invalidate(ctx, formID)

	s.audit.Record(ability.UserID(), audit.Form(formID), audit.PublishForm, "")
	record := row.Record()
	return &record, nil
}

// ReassignUsers replaces the owner set of a template with userIDs.
func (s *Service) ReassignUsers(ctx context.Context, ability rbac.Evaluator, formID string, userIDs []string) (*forms.Record, error) {
	if err := s.authorize(ability, audit.Form(formID), "Attempted to update assigned users for form",
		formRequest(rbac.ActionUpdate, nil, ""),
		rbac.Request{Action: rbac.ActionUpdate, Subject: rbac.SubjectUser},
	); err != nil {
		return nil, err
	}

	requested := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(requested, id) {
			requested = append(requested, id)
		}
	}
	if len(requested) == 0 {
		return nil, invalidInput("No users provided", nil)
	}

	item, err := s.loadWithOwners(ctx, formID)
	if err != nil || item == nil {
		return nil, err
	}

	previous := item.OwnerIDs()
	var toAdd, toRemove []string
	for _, id := range requested {
		if !slices.Contains(previous, id) {
			toAdd = append(toAdd, id)
		}
	}
	var removed []forms.Owner
	for _, owner := range item.Users {
		if !slices.Contains(requested, owner.ID) {
			toRemove = append(toRemove, owner.ID)
			removed = append(removed, owner)
		}
	}

	row, users, err := s.store.UpdateTemplateUsers(ctx, formID, toAdd, toRemove)
	if err != nil {
		if errors.Is(err, store.ErrUnknownUser) {
			return nil, invalidInput("Unknown user", map[string]any{"userIds": toAdd})
		}
		return nil, storageFailure("update form users", err)
	}
	if row == nil {
		return nil, nil
	}
	s.invalidate(ctx, formID)

	record := row.Record()
	current := owners(users)
	var added []forms.Owner
	for _, owner := range current {
		if slices.Contains(toAdd, owner.ID) {
			added = append(added, owner)
		}
	}

	s.notifyOwnershipChange(record, current, added, removed)

	actor := ability.UserID()
	if len(added) > 0 {
		s.audit.Record(actor, audit.Form(formID), audit.GrantFormAccess, "Access granted to "+ownerLabels(added))
	}
	if len(removed) > 0 {
		s.audit.Record(actor, audit.Form(formID), audit.RevokeFormAccess, "Access revoked for "+ownerLabels(removed))
	}
	return &record, nil
}

func (s *Service) notifyOwnershipChange(record forms.Record, current, added, removed []forms.Owner) {
	title := record.Name
	if title == "" {
		title = record.Title()
	}

	for _, owner := range added {
		if owner.Email == "" {
			continue
		}
		s.notifier.NotifyOwnershipGranted(OwnershipGranted{
			To:        owner.Email,
			OwnerName: displayName(owner),
			FormID:    record.ID,
			FormTitle: title,
		})
	}

	if len(removed) == 0 {
		return
	}
	names := make([]string, 0, len(current))
	for _, owner := range current {
		names = append(names, displayName(owner))
	}
	for _, owner := range removed {
		if owner.Email == "" {
			continue
		}
		s.notifier.NotifyOwnershipTransferred(OwnershipTransferred{
			To:        owner.Email,
			PastOwner: displayName(owner),
			NewOwners: strings.Join(names, ", "),
			FormID:    record.ID,
			FormTitle: title,
		})
	}
}

func (s *Service) SetFormPurpose(ctx context.Context, ability rbac.Evaluator, formID, purpose string) (*forms.Record, error) {
	item, err := s.loadWithOwners(ctx, formID)
	if err != nil || item == nil {
		return nil, err
	}
	if err := s.authorize(ability, audit.Form(formID), "Attempted to set Form Purpose",
		formRequest(rbac.ActionUpdate, ownedBy(item), rbac.FieldFormPurpose)); err != nil {
		return nil, err
	}
	if item.Record.IsPublished {
		return nil, alreadyPublished(formID)
	}
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return nil, invalidInput("Form purpose is required", nil)
	}

	row, err := s.store.UpdateTemplate(ctx, formID, store.TemplatePatch{RequireDraft: true, FormPurpose: store.Some(purpose)})
	if err != nil {
		return nil, writeFailure(formID, "set form purpose", err)
	}
	if row == nil {
		return nil, nil
	}
	s.invalidate(ctx, formID)

	s.audit.Record(ability.UserID(), audit.Form(formID), audit.ChangeFormPurpose, "Form Purpose set to "+purpose)
	record := row.Record()
	return &record, nil
}

// SetDeliveryOption routes responses to an email inbox.
func (s *Service) SetDeliveryOption(ctx context.Context, ability rbac.Evaluator, formID string, option forms.DeliveryOption) (*forms.Record, error) {
	item, err := s.loadWithOwners(ctx, formID)
	if err != nil || item == nil {
		return nil, err
	}
	if err := s.authorize(ability, audit.Form(formID), "Attempted to set Delivery Option",
		formRequest(rbac.ActionUpdate, ownedBy(item), rbac.FieldDeliveryOption)); err != nil {
		return nil, err
	}
	if item.Record.IsPublished {
		return nil, alreadyPublished(formID)
	}
	if err := validateDeliveryOption(option); err != nil {
		return nil, err
	}

	row, err := s.store.UpdateTemplate(ctx, formID, store.TemplatePatch{RequireDraft: true, DeliveryOption: store.Some(&option)})
	if err != nil {
		return nil, writeFailure(formID, "set delivery option", err)
	}
	if row == nil {
		return nil, nil
	}
	s.invalidate(ctx, formID)

	s.audit.Record(ability.UserID(), audit.Form(formID), audit.ChangeDeliveryOption, "Delivery Option set to "+option.EmailAddress)
	record := row.Record()
	return &record, nil
}

// ClearDeliveryOption sends responses back to the vault. Clearing an absent
// option returns the current record without writing.
func (s *Service) ClearDeliveryOption(ctx context.Context, ability rbac.Evaluator, formID string) (*forms.Record, error) {
	item, err := s.loadWithOwners(ctx, formID)
	if err != nil || item == nil {
		return nil, err
	}
	if err := s.authorize(ability, audit.Form(formID), "Attempted to set Delivery Option to the Vault",
		formRequest(rbac.ActionUpdate, ownedBy(item), rbac.FieldDeliveryOption)); err != nil {
		return nil, err
	}
	if item.Record.IsPublished {
		return nil, alreadyPublished(formID)
	}
	if item.Record.DeliveryOption == nil {
		return &item.Record, nil
	}

	row, err := s.store.UpdateTemplate(ctx, formID, store.TemplatePatch{RequireDraft: true, DeliveryOption: store.Some[*forms.DeliveryOption](nil)})
	if err != nil {
		return nil, writeFailure(formID, "clear delivery option", err)
	}
	if row == nil {
		return nil, nil
	}
	s.invalidate(ctx, formID)

	s.audit.Record(ability.UserID(), audit.Form(formID), audit.ChangeDeliveryOption, "Delivery Option set to the Vault")
	record := row.Record()
	return &record, nil
}

// SetClosingDate accepts an RFC 3339 timestamp, or "open" to remove the
// deadline. Published templates may change their closing date.
func (s *Service) SetClosingDate(ctx context.Context, ability rbac.Evaluator, formID, closingDate string) (*forms.Record, error) {
	item, err := s.loadWithOwners(ctx, formID)
	if err != nil || item == nil {
		return nil, err
	}
	if err := s.authorize(ability, audit.Form(formID), "Attempted to update closing date for Form",
		formRequest(rbac.ActionUpdate, ownedBy(item), rbac.FieldClosingDate)); err != nil {
		return nil, err
	}

	var (
		deadline *time.Time
		detail   = "Closing date removed"
	)
	if value := strings.TrimSpace(closingDate); value != forms.ClosingDateOpen {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return nil, invalidInput("Closing date must be an RFC 3339 timestamp or \"open\"", map[string]any{"closingDate": closingDate})
		}
		parsed = parsed.UTC()
		deadline = &parsed
		detail = "Closing date set to " + parsed.Format(time.RFC3339)
	}

	row, err := s.store.UpdateTemplate(ctx, formID, store.TemplatePatch{ClosingDate: store.Some(deadline)})
	if err != nil {
		return nil, storageFailure("set closing date", err)
	}
	if row == nil {
		return nil, nil
	}
	s.invalidate(ctx, formID)

	s.audit.Record(ability.UserID(), audit.Form(formID), audit.ChangeClosingDate, detail)
	record := row.Record()
	return &record, nil
}

// SetSecurityAttribute is allowed on published templates.
func (s *Service) SetSecurityAttribute(ctx context.Context, ability rbac.Evaluator, formID string, attribute forms.SecurityAttribute) (*forms.Record, error) {
	item, err := s.loadWithOwners(ctx, formID)
	if err != nil || item == nil {
		return nil, err
	}
	if err := s.authorize(ability, audit.Form(formID), "Attempted to update security attribute",
		formRequest(rbac.ActionUpdate, ownedBy(item), rbac.FieldSecurityAttribute)); err != nil {
		return nil, err
	}
	if !attribute.Valid() {
		return nil, invalidSecurityAttribute(attribute)
	}

	row, err := s.store.UpdateTemplate(ctx, formID, store.TemplatePatch{SecurityAttribute: store.Some(string(attribute))})
	if err != nil {
		return nil, storageFailure("set security attribute", err)
	}
	if row == nil {
		return nil, nil
	}
	s.invalidate(ctx, formID)

	s.audit.Record(ability.UserID(), audit.Form(formID), audit.ChangeSecurityAttribute,
		"Updated security attribute to "+string(attribute))
	record := row.Record()
	return &record, nil
}

// SoftDelete marks a template for removal after the grace period. Templates
// with unprocessed submissions cannot be deleted.
func (s *Service) SoftDelete(ctx context.Context, ability rbac.Evaluator, formID string) (*forms.Record, error) {
	const attempted = "Attempted to delete Form"

	item, err := s.loadWithOwners(ctx, formID)
	if err != nil || item == nil {
		return nil, err
	}
	if err := s.authorize(ability, audit.Form(formID), attempted,
		formRequest(rbac.ActionDelete, ownedBy(item), "")); err != nil {
		return nil, err
	}

	unprocessed, err := s.responses.CountUnprocessed(ctx, ability, formID, true)
	if err != nil {
		if errors.Is(err, rbac.ErrAccessDenied) {
			s.denied(ability, audit.Form(formID), attempted)
			return nil, accessDenied(err)
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, storageFailure("count unprocessed submissions", err)
	}
	if unprocessed > 0 {
		return nil, hasUnprocessedSubmissions(formID, unprocessed)
	}

	ttl := s.now().Add(s.softDeleteGrace).UTC()
	row, err := s.store.UpdateTemplate(ctx, formID, store.TemplatePatch{TTL: store.Some(&ttl)})
	if err != nil {
		return nil, storageFailure("delete form", err)
	}
	if row == nil {
		return nil, nil
	}
	s.invalidate(ctx, formID)

	s.audit.Record(ability.UserID(), audit.Form(formID), audit.DeleteForm, "")
	record := row.Record()
	return &record, nil
}

// CheckOwnership fails with an access-denied error unless the template
// exists and the principal may view it.
func (s *Service) CheckOwnership(ctx context.Context, ability rbac.Evaluator, formID string) error {
	const attempted = "Attempted to access Form"

	item, err := s.loadWithOwners(ctx, formID)
	if err != nil {
		s.logger.Error("ownership lookup failed", zap.String("form_id", formID), zap.Error(err))
	}
	if item == nil {
		s.denied(ability, audit.Form(formID), attempted)
		return accessDenied(&rbac.AccessControlError{
			UserID:  ability.UserID(),
			Request: formRequest(rbac.ActionView, anyForm(), ""),
		})
	}
	return s.authorize(ability, audit.Form(formID), attempted, formRequest(rbac.ActionView, ownedBy(item), ""))
}

// writeFailure maps a failed draft-only write. A publish that landed after
// the pre-check surfaces as ErrPublished from the locked row.
func writeFailure(formID, action string, err error) error {
	if errors.Is(err, store.ErrPublished) {
		return alreadyPublished(formID)
	}
	return storageFailure(action, err)
}

func validateFormConfig(config json.RawMessage) error {
	var object map[string]json.RawMessage
	if len(config) == 0 || json.Unmarshal(config, &object) != nil || object == nil {
		return invalidInput("Form configuration must be a JSON object", nil)
	}
	return nil
}

func validateDeliveryOption(option forms.DeliveryOption) error {
	address := strings.TrimSpace(option.EmailAddress)
	if address == "" {
		return invalidInput("Delivery option requires an email address", nil)
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return invalidInput("Delivery option email address is invalid", map[string]any{"emailAddress": option.EmailAddress})
	}
	return nil
}

func invalidSecurityAttribute(attribute forms.SecurityAttribute) *DomainError {
	return invalidInput("Unknown security attribute", map[string]any{
		"securityAttribute": string(attribute),
		"allowed":           []forms.SecurityAttribute{forms.Unclassified, forms.ProtectedA, forms.ProtectedB},
	})
}

func displayName(owner forms.Owner) string {
	if owner.Name != "" {
		return owner.Name
	}
	return owner.Email
}

func ownerLabels(owners []forms.Owner) string {
	labels := make([]string, 0, len(owners))
	for _, owner := range owners {
		if owner.Email != "" {
			labels = append(labels, owner.Email)
		} else {
			labels = append(labels, owner.ID)
		}
	}
	return strings.Join(labels, ",")
}
