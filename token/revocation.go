package token

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/stores"
)

// RevocationSet records revoked token ids until their natural expiry.
type RevocationSet struct {
	keyed stores.Keyed
}

// NewRevocationSet stores entries as "revoked:<jti>" in keyed.
func NewRevocationSet(keyed stores.Keyed) *RevocationSet {
	return &RevocationSet{keyed: keyed}
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}

// Add marks jti revoked for ttl.
func (r *RevocationSet) Add(ctx context.Context, jti string, ttl time.Duration) error {
	return r.keyed.Put(ctx, revokedKey(jti), "1", ttl)
}

// Contains reports whether jti is revoked.
func (r *RevocationSet) Contains(ctx context.Context, jti string) (bool, error) {
	return r.keyed.Exists(ctx, revokedKey(jti))
}
