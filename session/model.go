package session

import "time"

// Session is one signed-in device. It lives as long as its refresh token.
type Session struct {
	ID         string
	AccountID  string
	IP         string
	UserAgent  string
	CreatedAt  time.Time
	LastUsedAt time.Time
	// RefreshJTI is the id of the only refresh token that may rotate this
	// session.
	RefreshJTI string
}

const (
	fieldAccountID  = "account_id"
	fieldIP         = "ip"
	fieldUserAgent  = "user_agent"
	fieldCreatedAt  = "created_at"
	fieldLastUsedAt = "last_used_at"
	fieldRefreshJTI = "refresh_jti"
)

func (s *Session) fields() map[string]interface{} {
	return map[string]interface{}{
		fieldAccountID:  s.AccountID,
		fieldIP:         s.IP,
		fieldUserAgent:  s.UserAgent,
		fieldCreatedAt:  s.CreatedAt.UnixMilli(),
		fieldLastUsedAt: s.LastUsedAt.UnixMilli(),
		fieldRefreshJTI: s.RefreshJTI,
	}
}

func fromFields(id string, m map[string]string) (*Session, error) {
	if m[fieldAccountID] == "" {
		return nil, ErrCorrupt
	}
	created, err := parseMillis(m[fieldCreatedAt])
	if err != nil {
		return nil, ErrCorrupt
	}
	lastUsed, err := parseMillis(m[fieldLastUsedAt])
	if err != nil {
		return nil, ErrCorrupt
	}
	return &Session{
		ID:         id,
		AccountID:  m[fieldAccountID],
		IP:         m[fieldIP],
		UserAgent:  m[fieldUserAgent],
		CreatedAt:  created,
		LastUsedAt: lastUsed,
		RefreshJTI: m[fieldRefreshJTI],
	}, nil
}
