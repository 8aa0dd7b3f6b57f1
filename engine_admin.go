package authcore

import (
	"context"
	"strconv"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/permission"
)

// SetRole changes the role of account id. The actor must be an admin ranked
// above both the target's current role and the new one; granting
// superadmin needs a superadmin. The target's sessions are revoked so the
// new role applies from the next login.
func (e *Engine) SetRole(ctx context.Context, actor *Principal, id string, role permission.Role) error {
	if role == "" {
		return ErrInvalidInput
	}
	return e.updateAccount(ctx, actor, flows.StatusChange{TargetID: id, Role: role},
		auditEventAccountRoleChanged, MetricAccountRoleChanged,
		map[string]string{"role": string(role)})
}

// SetActive enables or disables account id. Disabling revokes every session
// of the account.
func (e *Engine) SetActive(ctx context.Context, actor *Principal, id string, active bool) error {
	metric := MetricAccountDisabled
	if active {
		metric = MetricAccountEnabled
	}
	return e.updateAccount(ctx, actor, flows.StatusChange{TargetID: id, Active: &active},
		auditEventAccountStatusChanged, metric,
		map[string]string{"active": strconv.FormatBool(active)})
}

// DeleteAccount removes account id and its sessions. Only a superadmin may
// delete accounts.
func (e *Engine) DeleteAccount(ctx context.Context, actor *Principal, id string) error {
	return e.updateAccount(ctx, actor, flows.StatusChange{TargetID: id, Delete: true},
		auditEventAccountDeleted, MetricAccountDeleted, nil)
}

func (e *Engine) updateAccount(ctx context.Context, actor *Principal, change flows.StatusChange, event string, metric MetricID, metadata map[string]string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if actor == nil {
		return ErrNotAuthenticated
	}
	change.ActorRole = actor.Role

	res := e.flow.UpdateAccountAndInvalidate(ctx, change)

	var err error
	switch res.Failure {
	case flows.StatusFailureNone:
	case flows.StatusFailureNotFound:
		err = ErrAccountNotFound
	case flows.StatusFailureForbidden:
		err = ErrInsufficientRole
	case flows.StatusFailureInvalid:
		err = ErrInvalidInput
	default:
		e.metricInc(MetricStoreUnavailable)
		err = unavailable(res.Err)
	}

	build := func() map[string]string {
		out := map[string]string{"actor_id": actor.AccountID}
		for k, v := range metadata {
			out[k] = v
		}
		if err == nil {
			out["sessions_revoked"] = strconv.Itoa(res.Revoked)
		}
		return out
	}
	e.emitAudit(ctx, event, err == nil, change.TargetID, "", err, build)
	if err != nil {
		return err
	}

	e.metricInc(metric)
	return nil
}
