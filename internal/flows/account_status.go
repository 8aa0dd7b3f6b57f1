package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/permission"
)

// StatusFailureKind classifies admin account changes.
type StatusFailureKind int

const (
	StatusFailureNone StatusFailureKind = iota
	StatusFailureNotFound
	StatusFailureForbidden
	StatusFailureInvalid
	StatusFailureUnavailable
	StatusFailureInvalidation
)

// StatusResult reports the outcome of an admin account change.
type StatusResult struct {
	Failure StatusFailureKind
	Err     error
	Target  *accounts.Account
	Revoked int
}

// StatusDeps captures admin account change dependencies.
type StatusDeps struct {
	LoadAccount func(ctx context.Context, id string) (*accounts.Account, error)
	SetRole     func(ctx context.Context, id string, role permission.Role) error
	SetActive   func(ctx context.Context, id string, active bool) error
	Delete      func(ctx context.Context, id string) error
	RevokeAll   func(ctx context.Context, accountID string) (int, error)
}

// StatusChange is applied by RunUpdateAccountAndInvalidate.
type StatusChange struct {
	ActorRole permission.Role
	TargetID  string
	Role      permission.Role
	Active    *bool
	Delete    bool
}

// RunUpdateAccountAndInvalidate applies change to the target account and
// ends its sessions. An actor may only change accounts ranked below it;
// granting superadmin and deleting accounts need superadmin.
func RunUpdateAccountAndInvalidate(ctx context.Context, change StatusChange, deps StatusDeps) StatusResult {
	target, err := deps.LoadAccount(ctx, change.TargetID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return StatusResult{Failure: StatusFailureNotFound, Err: err}
		}
		return StatusResult{Failure: StatusFailureUnavailable, Err: err}
	}
	res := StatusResult{Target: target}

	if !canManage(change, target) {
		res.Failure = StatusFailureForbidden
		return res
	}

	switch {
	case change.Delete:
		err = deps.Delete(ctx, target.ID)
	case change.Role != "":
		if !change.Role.Valid() {
			res.Failure = StatusFailureInvalid
			res.Err = permission.ErrUnknownRole
			return res
		}
		err = deps.SetRole(ctx, target.ID, change.Role)
	case change.Active != nil:
		err = deps.SetActive(ctx, target.ID, *change.Active)
	default:
		res.Failure = StatusFailureInvalid
		return res
	}
	if err != nil {
		res.Err = err
		res.Failure = StatusFailureUnavailable
		if errors.Is(err, accounts.ErrNotFound) {
			res.Failure = StatusFailureNotFound
		}
		return res
	}

	n, err := deps.RevokeAll(ctx, target.ID)
	if err != nil {
		res.Failure = StatusFailureInvalidation
		res.Err = err
		return res
	}
	res.Revoked = n
	return res
}

func canManage(change StatusChange, target *accounts.Account) bool {
	if !change.ActorRole.AtLeast(permission.RoleAdmin) {
		return false
	}
	if change.Delete || change.Role == permission.RoleSuperadmin {
		if change.ActorRole != permission.RoleSuperadmin {
			return false
		}
	}
	if change.ActorRole == permission.RoleSuperadmin {
		return true
	}
	if change.Role != "" && !change.ActorRole.AtLeast(change.Role) {
		return false
	}
	return target.Role.Rank() < change.ActorRole.Rank()
}
