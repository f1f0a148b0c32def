package authz

import (
	"fmt"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/teamsync/backend/pkg/logger"
)

// Relations a caller can hold towards a resource. Services work out the
// relation from the data and ask the enforcer whether it grants the action.
const (
	Authenticated = "authenticated"
	Owner         = "owner"
	Requester     = "requester"
	Recipient     = "recipient"
)

// Objects.
const (
	ObjProject      = "project"
	ObjProjectRole  = "project_role"
	ObjMembership   = "membership"
	ObjNotification = "notification"
)

// Actions.
const (
	ActCreate   = "create"
	ActRead     = "read"
	ActUpdate   = "update"
	ActDelete   = "delete"
	ActDecide   = "decide"
	ActWithdraw = "withdraw"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

var policies = [][]string{
	{Authenticated, ObjProject, ActCreate},
	{Authenticated, ObjProject, ActRead},
	{Authenticated, ObjMembership, ActCreate},

	{Owner, ObjProject, ActUpdate},
	{Owner, ObjProject, ActDelete},
	{Owner, ObjProjectRole, ActCreate},
	{Owner, ObjProjectRole, ActDelete},
	{Owner, ObjMembership, ActRead},
	{Owner, ObjMembership, ActDecide},

	{Requester, ObjMembership, ActRead},
	{Requester, ObjMembership, ActWithdraw},

	{Recipient, ObjNotification, ActRead},
	{Recipient, ObjNotification, ActUpdate},
}

// Every specific relation also holds whatever an authenticated caller may do.
var inherits = [][]string{
	{Owner, Authenticated},
	{Requester, Authenticated},
	{Recipient, Authenticated},
}

// Enforcer wraps a casbin enforcer loaded with the relation policies.
type Enforcer struct {
	e *casbin.Enforcer
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}

	if _, err := e.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("authz policies: %w", err)
	}
	if _, err := e.AddGroupingPolicies(inherits); err != nil {
		return nil, fmt.Errorf("authz grouping: %w", err)
	}

	return &Enforcer{e: e}, nil
}

// MustNewEnforcer panics when the built-in model fails to load.
func MustNewEnforcer() *Enforcer {
	e, err := NewEnforcer()
	if err != nil {
		panic(err)
	}
	return e
}

// Allow reports whether a caller holding relation may perform act on obj.
func (a *Enforcer) Allow(relation, obj, act string) bool {
	ok, err := a.e.Enforce(relation, obj, act)
	if err != nil {
		logger.Error().Err(err).
			Str("relation", relation).
			Str("obj", obj).
			Str("act", act).
			Msg("authz enforce failed")
		return false
	}
	return ok
}
