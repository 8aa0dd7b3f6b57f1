package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/session"
)

// ListSessions returns the live sessions of the principal's account, newest
// first.
func (e *Engine) ListSessions(ctx context.Context, p *Principal) ([]SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotAuthenticated
	}

	list, err := e.sessions.List(ctx, p.AccountID)
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		return nil, unavailable(err)
	}

	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, SessionInfo{
			ID:         s.ID,
			IP:         s.IP,
			UserAgent:  s.UserAgent,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			Current:    s.ID == p.SessionID,
		})
	}
	return out, nil
}

// RevokeSession ends one session of the principal's account, for example a
// lost device. Sessions of other accounts are reported as not found.
func (e *Engine) RevokeSession(ctx context.Context, p *Principal, sessionID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if p == nil {
		return ErrNotAuthenticated
	}

	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return unavailable(err)
	}
	if s.AccountID != p.AccountID {
		return ErrSessionNotFound
	}

	if err := e.sessions.Revoke(ctx, s.ID); err != nil {
		return unavailable(err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, p.AccountID, s.ID, nil, nil)
	return nil
}
