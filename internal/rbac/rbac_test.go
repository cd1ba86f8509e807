package rbac

import (
	"errors"
	"testing"
)

func TestCan(t *testing.T) {
	owned := &Object{Users: []string{"u1"}}
	foreign := &Object{Users: []string{"u2"}}
	anyForm := &Object{}

	base := NewAbility("u1", "u1@example.gc.ca", []Privilege{PrivilegeBase})
	publisher := NewAbility("u1", "u1@example.gc.ca", []Privilege{PrivilegeBase, PrivilegePublishForms})
	admin := NewAbility("a1", "a1@example.gc.ca", []Privilege{PrivilegeBase, PrivilegeManageForms, PrivilegeManageUsers})

	cases := []struct {
		name    string
		ability *Ability
		req     Request
		allow   bool
	}{
		{name: "base create", ability: base, req: Request{Action: ActionCreate, Subject: SubjectFormRecord}, allow: true},
		{name: "base view type", ability: base, req: Request{Action: ActionView, Subject: SubjectFormRecord}, allow: true},
		{name: "base view owned", ability: base, req: Request{Action: ActionView, Subject: SubjectFormRecord, Object: owned}, allow: true},
		{name: "base view foreign", ability: base, req: Request{Action: ActionView, Subject: SubjectFormRecord, Object: foreign}, allow: false},
		{name: "base view all", ability: base, req: Request{Action: ActionView, Subject: SubjectFormRecord, Object: anyForm}, allow: false},
		{name: "base update owned", ability: base, req: Request{Action: ActionUpdate, Subject: SubjectFormRecord, Object: owned}, allow: true},
		{name: "base update security attribute", ability: base, req: Request{Action: ActionUpdate, Subject: SubjectFormRecord, Object: owned, Field: FieldSecurityAttribute}, allow: true},
		{name: "base publish owned", ability: base, req: Request{Action: ActionUpdate, Subject: SubjectFormRecord, Object: owned, Field: FieldIsPublished}, allow: false},
		{name: "base delete foreign", ability: base, req: Request{Action: ActionDelete, Subject: SubjectFormRecord, Object: foreign}, allow: false},
		{name: "base update user", ability: base, req: Request{Action: ActionUpdate, Subject: SubjectUser}, allow: false},
		{name: "publisher publish owned", ability: publisher, req: Request{Action: ActionUpdate, Subject: SubjectFormRecord, Object: owned, Field: FieldIsPublished}, allow: true},
		{name: "publisher publish foreign", ability: publisher, req: Request{Action: ActionUpdate, Subject: SubjectFormRecord, Object: foreign, Field: FieldIsPublished}, allow: false},
		{name: "publisher unpublish any", ability: publisher, req: Request{Action: ActionUpdate, Subject: SubjectFormRecord, Object: anyForm}, allow: false},
		{name: "admin unpublish any", ability: admin, req: Request{Action: ActionUpdate, Subject: SubjectFormRecord, Object: anyForm}, allow: true},
		{name: "admin view all", ability: admin, req: Request{Action: ActionView, Subject: SubjectFormRecord, Object: anyForm}, allow: true},
		{name: "admin publish foreign", ability: admin, req: Request{Action: ActionUpdate, Subject: SubjectFormRecord, Object: foreign, Field: FieldIsPublished}, allow: true},
		{name: "admin update user", ability: admin, req: Request{Action: ActionUpdate, Subject: SubjectUser}, allow: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ability.Can(tc.req); got != tc.allow {
				t.Fatalf("Can(%s) = %v, want %v", tc.req, got, tc.allow)
			}
		})
	}
}

func TestEvaluateReportsFirstDenial(t *testing.T) {
	ability := NewAbility("u1", "u1@example.gc.ca", []Privilege{PrivilegeBase})

	err := ability.Evaluate(
		Request{Action: ActionUpdate, Subject: SubjectFormRecord},
		Request{Action: ActionUpdate, Subject: SubjectUser},
	)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	var accessErr *AccessControlError
	if !errors.As(err, &accessErr) || accessErr.Request.Subject != SubjectUser || accessErr.UserID != "u1" {
		t.Fatalf("expected denial on User subject, got %+v", accessErr)
	}

	if err := ability.Evaluate(Request{Action: ActionCreate, Subject: SubjectFormRecord}); err != nil {
		t.Fatalf("expected create allowed, got %v", err)
	}
}

func TestNoPrivilegesDeniesEverything(t *testing.T) {
	ability := NewAbility("u1", "", nil)
	if ability.Can(Request{Action: ActionView, Subject: SubjectFormRecord}) {
		t.Fatal("expected view denied without privileges")
	}
}

func TestParsePrivileges(t *testing.T) {
	got := ParsePrivileges([]string{"Base", "Unknown", "ManageForms"})
	if len(got) != 2 || got[0] != PrivilegeBase || got[1] != PrivilegeManageForms {
		t.Fatalf("unexpected privileges %v", got)
	}
}
