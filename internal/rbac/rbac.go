package rbac

import (
	"errors"
	"fmt"
	"slices"
)

type Action string
type Subject string
type Privilege string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionManage matches every action.
	ActionManage Action = "manage"
)

const (
	SubjectFormRecord Subject = "FormRecord"
	SubjectUser       Subject = "User"
)

const (
	PrivilegeBase               Privilege = "Base"
	PrivilegePublishForms       Privilege = "PublishForms"
	PrivilegeManageForms        Privilege = "ManageForms"
	PrivilegeViewUserPrivileges Privilege = "ViewUserPrivileges"
	PrivilegeManageUsers        Privilege = "ManageUsers"
)

const (
	FieldIsPublished       = "isPublished"
	FieldSecurityAttribute = "securityAttribute"
	FieldClosingDate       = "closingDate"
	FieldFormPurpose       = "formPurpose"
	FieldDeliveryOption    = "deliveryOption"
)

// Object is the resource a request is evaluated against. An Object with no
// users forces ownership conditions to fail, which is how callers ask for
// "any template" rather than "this template".
type Object struct {
	Users []string
}

// Request asks whether an action is allowed on a subject. A nil Object
// checks the subject type only and ignores ownership conditions.
type Request struct {
	Action  Action
	Subject Subject
	Object  *Object
	Field   string
}

func (r Request) String() string {
	if r.Field != "" {
		return fmt.Sprintf("%s %s.%s", r.Action, r.Subject, r.Field)
	}
	return fmt.Sprintf("%s %s", r.Action, r.Subject)
}

var ErrAccessDenied = errors.New("access control forbidden action")

type AccessControlError struct {
	UserID  string
	Request Request
}

func (e *AccessControlError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAccessDenied, e.Request)
}

func (e *AccessControlError) Is(target error) bool {
	return target == ErrAccessDenied
}

type rule struct {
	action    Action
	subject   Subject
	fields    []string
	ownerOnly bool
	inverted  bool
}

// privilegeOrder fixes rule precedence: later privileges override earlier ones.
var privilegeOrder = []Privilege{
	PrivilegeBase,
	PrivilegePublishForms,
	PrivilegeManageForms,
	PrivilegeViewUserPrivileges,
	PrivilegeManageUsers,
}

var privilegeRules = map[Privilege][]rule{
	PrivilegeBase: {
		{action: ActionCreate, subject: SubjectFormRecord},
		{action: ActionView, subject: SubjectFormRecord, ownerOnly: true},
		{action: ActionUpdate, subject: SubjectFormRecord, ownerOnly: true},
		{action: ActionDelete, subject: SubjectFormRecord, ownerOnly: true},
		{action: ActionUpdate, subject: SubjectFormRecord, fields: []string{FieldIsPublished}, inverted: true},
	},
	PrivilegePublishForms: {
		{action: ActionUpdate, subject: SubjectFormRecord, fields: []string{FieldIsPublished}, ownerOnly: true},
	},
	PrivilegeManageForms: {
		{action: ActionManage, subject: SubjectFormRecord},
	},
	PrivilegeViewUserPrivileges: {
		{action: ActionView, subject: SubjectUser},
	},
	PrivilegeManageUsers: {
		{action: ActionManage, subject: SubjectUser},
	},
}

// Evaluator is what services need from a principal.
type Evaluator interface {
	UserID() string
	Evaluate(requests ...Request) error
}

// Ability is a principal together with the rules its privileges grant.
type Ability struct {
	userID     string
	email      string
	privileges []Privilege
	rules      []rule
}

func NewAbility(userID, email string, privileges []Privilege) *Ability {
	ability := &Ability{userID: userID, email: email}
	for _, privilege := range privilegeOrder {
		if !slices.Contains(privileges, privilege) {
			continue
		}
		ability.privileges = append(ability.privileges, privilege)
		ability.rules = append(ability.rules, privilegeRules[privilege]...)
	}
	return ability
}

// ParsePrivileges drops names that are not known privileges.
func ParsePrivileges(names []string) []Privilege {
	privileges := make([]Privilege, 0, len(names))
	for _, name := range names {
		privilege := Privilege(name)
		if _, ok := privilegeRules[privilege]; ok {
			privileges = append(privileges, privilege)
		}
	}
	return privileges
}

func (a *Ability) UserID() string {
	return a.userID
}

func (a *Ability) Email() string {
	return a.email
}

func (a *Ability) Privileges() []Privilege {
	return slices.Clone(a.privileges)
}

// Can resolves a request against the most recently granted matching rule.
func (a *Ability) Can(req Request) bool {
	for i := len(a.rules) - 1; i >= 0; i-- {
		r := a.rules[i]
		if !r.matches(req, a.userID) {
			continue
		}
		return !r.inverted
	}
	return false
}

// Evaluate checks every request and fails on the first denial.
func (a *Ability) Evaluate(requests ...Request) error {
	for _, req := range requests {
		if !a.Can(req) {
			return &AccessControlError{UserID: a.userID, Request: req}
		}
	}
	return nil
}

func (r rule) matches(req Request, userID string) bool {
	if r.action != ActionManage && r.action != req.Action {
		return false
	}
	if r.subject != req.Subject {
		return false
	}
	if len(r.fields) > 0 {
		if req.Field == "" {
			// An inverted field rule never forbids the whole subject.
			if r.inverted {
				return false
			}
		} else if !slices.Contains(r.fields, req.Field) {
			return false
		}
	}
	if !r.ownerOnly {
		return true
	}
	if req.Object == nil {
		return !r.inverted
	}
	return slices.Contains(req.Object.Users, userID)
}
