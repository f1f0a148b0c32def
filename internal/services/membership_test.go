package services

import (
	"net/http"
	"strings"
	"testing"

	"github.com/teamsync/backend/internal/models"
)

func TestMembership_JoinApproveScenario(t *testing.T) {
	env := newTestEnv(t)
	u1 := createUser(t, env.db, "u1@example.com")
	u2 := createUser(t, env.db, "u2@example.com")
	p := createProject(t, env, u1.ID, "Rocket", "Pilot", "Engineer")
	r := p.Roles[0]

	stream := env.hub.Subscribe(u1.ID, "tab")

	m, err := env.memberships.Submit(u2.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: r.ID})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if m.Status != models.MembershipPending {
		t.Errorf("Status = %q, expected pending", m.Status)
	}
	if m.ProjectRole == nil || m.ProjectRole.DisplayName() != "Pilot" {
		t.Error("membership should carry its role")
	}

	var joinReq []models.Notification
	env.db.Where("type = ?", models.NotificationJoinRequest).Find(&joinReq)
	if len(joinReq) != 1 {
		t.Fatalf("expected exactly 1 join_request notification, got %d", len(joinReq))
	}
	n := joinReq[0]
	if n.RecipientID != u1.ID {
		t.Errorf("join_request recipient = %d, expected owner %d", n.RecipientID, u1.ID)
	}
	if n.Title != "New join request for Rocket" {
		t.Errorf("Title = %q", n.Title)
	}
	if !strings.Contains(n.Message, "u2@example.com") || !strings.Contains(n.Message, "Pilot") {
		t.Errorf("Message = %q should name requester and role", n.Message)
	}
	if n.RelatedUserID == nil || *n.RelatedUserID != u2.ID {
		t.Error("join_request should reference the requester")
	}
	if dataID(t, n, "membership_id") != int64(m.ID) || dataID(t, n, "role_id") != int64(r.ID) {
		t.Errorf("Data = %v, expected membership and role ids", n.Data)
	}

	select {
	case pushed := <-stream:
		if pushed.ID != n.ID {
			t.Errorf("streamed notification %d, expected %d", pushed.ID, n.ID)
		}
	default:
		t.Error("owner stream should receive the join request")
	}

	decided, err := env.memberships.Decide(u1.ID, m.ID, &DecideMembershipRequest{Status: models.MembershipApproved})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decided.Status != models.MembershipApproved {
		t.Errorf("Status = %q, expected approved", decided.Status)
	}

	var accepted []models.Notification
	env.db.Where("type = ?", models.NotificationRequestAccepted).Find(&accepted)
	if len(accepted) != 1 || accepted[0].RecipientID != u2.ID {
		t.Fatalf("expected one request_accepted to u2, got %+v", accepted)
	}
	if accepted[0].Message != "Your request to join Rocket as a Pilot has been accepted." {
		t.Errorf("Message = %q", accepted[0].Message)
	}

	_, err = env.memberships.Submit(u2.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: r.ID})
	expectStatus(t, err, http.StatusConflict)

	// A different role of the same project is an independent request.
	if _, err := env.memberships.Submit(u2.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: p.Roles[1].ID}); err != nil {
		t.Errorf("Submit(other role) error = %v", err)
	}
}

func TestMembership_SubmitErrors(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env.db, "owner@example.com")
	user := createUser(t, env.db, "user@example.com")
	p := createProject(t, env, owner.ID, "P", "Dev")
	q := createProject(t, env, owner.ID, "Q", "Ops")

	tests := []struct {
		name   string
		req    *CreateMembershipRequest
		status int
	}{
		{"unknown project", &CreateMembershipRequest{ProjectID: 9999, ProjectRoleID: p.Roles[0].ID}, http.StatusNotFound},
		{"unknown role", &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: 9999}, http.StatusNotFound},
		{"role of another project", &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: q.Roles[0].ID}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.memberships.Submit(user.ID, tt.req)
			expectStatus(t, err, tt.status)
		})
	}

	// Owners may apply to their own project.
	if _, err := env.memberships.Submit(owner.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: p.Roles[0].ID}); err != nil {
		t.Errorf("owner Submit() error = %v", err)
	}
}

func TestMembership_OnlyOwnerDecides(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env.db, "owner@example.com")
	requester := createUser(t, env.db, "req@example.com")
	stranger := createUser(t, env.db, "stranger@example.com")
	p := createProject(t, env, owner.ID, "P", "Dev")
	m, _ := env.memberships.Submit(requester.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: p.Roles[0].ID})

	for _, actor := range []*models.User{requester, stranger} {
		_, err := env.memberships.Decide(actor.ID, m.ID, &DecideMembershipRequest{Status: models.MembershipApproved})
		expectStatus(t, err, http.StatusForbidden)
	}

	current, _ := env.memberships.Get(owner.ID, m.ID)
	if current.Status != models.MembershipPending {
		t.Errorf("Status = %q, membership should be unchanged", current.Status)
	}
	if n := countNotifications(t, env.db, requester.ID, models.NotificationRequestAccepted); n != 0 {
		t.Errorf("no decision notification expected, got %d", n)
	}

	_, err := env.memberships.Decide(owner.ID, m.ID, &DecideMembershipRequest{Status: models.MembershipPending})
	expectStatus(t, err, http.StatusBadRequest)

	_, err = env.memberships.Decide(owner.ID, 9999, &DecideMembershipRequest{Status: models.MembershipApproved})
	expectStatus(t, err, http.StatusNotFound)
}

func TestMembership_DecisionIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env.db, "owner@example.com")
	requester := createUser(t, env.db, "req@example.com")
	p := createProject(t, env, owner.ID, "P", "Dev")
	m, _ := env.memberships.Submit(requester.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: p.Roles[0].ID})

	if _, err := env.memberships.Decide(owner.ID, m.ID, &DecideMembershipRequest{Status: models.MembershipRejected}); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	// Same decision again is a no-op without a second notification.
	again, err := env.memberships.Decide(owner.ID, m.ID, &DecideMembershipRequest{Status: models.MembershipRejected})
	if err != nil {
		t.Fatalf("repeat Decide() error = %v", err)
	}
	if again.Status != models.MembershipRejected {
		t.Errorf("Status = %q", again.Status)
	}
	if n := countNotifications(t, env.db, requester.ID, models.NotificationRequestRejected); n != 1 {
		t.Errorf("expected exactly 1 request_rejected, got %d", n)
	}

	_, err = env.memberships.Decide(owner.ID, m.ID, &DecideMembershipRequest{Status: models.MembershipApproved})
	expectStatus(t, err, http.StatusConflict)
	if n := countNotifications(t, env.db, requester.ID, models.NotificationRequestAccepted); n != 0 {
		t.Errorf("flip should not notify, got %d", n)
	}
}

func TestMembership_ListVisibility(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env.db, "owner@example.com")
	alice := createUser(t, env.db, "alice@example.com")
	bob := createUser(t, env.db, "bob@example.com")
	p := createProject(t, env, owner.ID, "P", "Dev", "Ops")
	q := createProject(t, env, bob.ID, "Q", "QA")

	a1, _ := env.memberships.Submit(alice.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: p.Roles[0].ID})
	b1, _ := env.memberships.Submit(bob.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: p.Roles[1].ID})
	a2, _ := env.memberships.Submit(alice.ID, &CreateMembershipRequest{ProjectID: q.ID, ProjectRoleID: q.Roles[0].ID})
	env.memberships.Decide(owner.ID, b1.ID, &DecideMembershipRequest{Status: models.MembershipApproved})

	ids := func(resp *MembershipListResponse) map[uint]bool {
		out := map[uint]bool{}
		for _, m := range resp.Items {
			out[m.ID] = true
		}
		return out
	}

	tests := []struct {
		name     string
		viewer   uint
		req      MembershipListRequest
		expected []uint
	}{
		{"owner sees project requests", owner.ID, MembershipListRequest{}, []uint{a1.ID, b1.ID}},
		{"alice sees her own", alice.ID, MembershipListRequest{}, []uint{a1.ID, a2.ID}},
		{"bob sees own plus his project's", bob.ID, MembershipListRequest{}, []uint{b1.ID, a2.ID}},
		{"project filter", alice.ID, MembershipListRequest{ProjectID: &q.ID}, []uint{a2.ID}},
		{"status filter", owner.ID, MembershipListRequest{Status: models.MembershipApproved}, []uint{b1.ID}},
		{"user filter cannot widen", bob.ID, MembershipListRequest{UserID: &alice.ID}, []uint{a2.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			resp, err := env.memberships.List(tt.viewer, &req)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			got := ids(resp)
			if len(got) != len(tt.expected) || resp.Total != int64(len(tt.expected)) {
				t.Fatalf("got %v (total %d), expected %v", got, resp.Total, tt.expected)
			}
			for _, id := range tt.expected {
				if !got[id] {
					t.Errorf("missing membership %d in %v", id, got)
				}
			}
		})
	}

	_, err := env.memberships.List(owner.ID, &MembershipListRequest{Status: "maybe"})
	expectStatus(t, err, http.StatusBadRequest)

	_, err = env.memberships.Get(alice.ID, b1.ID)
	expectStatus(t, err, http.StatusNotFound)
	if _, err := env.memberships.Get(bob.ID, a2.ID); err != nil {
		t.Errorf("project owner should see requests to their project: %v", err)
	}
}

func TestMembership_Withdraw(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env.db, "owner@example.com")
	requester := createUser(t, env.db, "req@example.com")
	p := createProject(t, env, owner.ID, "P", "Dev", "Ops")
	m, _ := env.memberships.Submit(requester.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: p.Roles[0].ID})
	decided, _ := env.memberships.Submit(requester.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: p.Roles[1].ID})
	env.memberships.Decide(owner.ID, decided.ID, &DecideMembershipRequest{Status: models.MembershipApproved})

	err := env.memberships.Withdraw(owner.ID, m.ID)
	expectStatus(t, err, http.StatusForbidden)

	err = env.memberships.Withdraw(requester.ID, decided.ID)
	expectStatus(t, err, http.StatusConflict)

	if err := env.memberships.Withdraw(requester.ID, m.ID); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	_, err = env.memberships.Get(requester.ID, m.ID)
	expectStatus(t, err, http.StatusNotFound)

	// Withdrawing frees the role for a new request.
	if _, err := env.memberships.Submit(requester.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: p.Roles[0].ID}); err != nil {
		t.Errorf("resubmit after withdraw error = %v", err)
	}
}

func TestMembership_NotificationFailureKeepsMembership(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env.db, "owner@example.com")
	requester := createUser(t, env.db, "req@example.com")
	p := createProject(t, env, owner.ID, "P", "Dev")

	if err := env.db.Migrator().DropTable(&models.Notification{}); err != nil {
		t.Fatalf("DropTable() error = %v", err)
	}

	m, err := env.memberships.Submit(requester.ID, &CreateMembershipRequest{ProjectID: p.ID, ProjectRoleID: p.Roles[0].ID})
	if err != nil {
		t.Fatalf("Submit() should succeed without notifications: %v", err)
	}
	if _, err := env.memberships.Decide(owner.ID, m.ID, &DecideMembershipRequest{Status: models.MembershipApproved}); err != nil {
		t.Fatalf("Decide() should succeed without notifications: %v", err)
	}

	var stored models.ProjectMembership
	env.db.First(&stored, m.ID)
	if stored.Status != models.MembershipApproved {
		t.Errorf("Status = %q, expected approved", stored.Status)
	}
}
