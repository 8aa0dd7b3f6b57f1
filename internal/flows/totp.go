package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/accounts"
)

// TOTPFailureKind classifies two-factor enrollment failures.
type TOTPFailureKind int

const (
	TOTPFailureNone TOTPFailureKind = iota
	TOTPFailureAlreadyEnabled
	TOTPFailureNotEnabled
	TOTPFailureInvalidCode
	TOTPFailureNotFound
	TOTPFailureUnavailable
)

// TOTPResult reports the outcome of a two-factor operation.
type TOTPResult struct {
	Failure TOTPFailureKind
	Err     error
	Secret  string
	URI     string
}

// TOTPDeps captures two-factor dependencies.
type TOTPDeps struct {
	Now            func() time.Time
	LoadAccount    func(ctx context.Context, id string) (*accounts.Account, error)
	GenerateSecret func() (string, error)
	ProvisionURI   func(secret, account string) string
	VerifyCode     func(secret, code string, now time.Time) (bool, int64, error)
	SetTOTP        func(ctx context.Context, id, secret string, enabled bool) error
	AdvanceCounter func(ctx context.Context, id string, counter int64) (bool, error)
}

// RunVerifyTOTP checks code for a and consumes its time step so the same
// code cannot be used twice.
func RunVerifyTOTP(ctx context.Context, a *accounts.Account, code string, deps TOTPDeps) (bool, error) {
	if a.TOTPSecret == "" {
		return false, nil
	}
	ok, counter, err := deps.VerifyCode(a.TOTPSecret, code, deps.Now())
	if err != nil || !ok {
		return false, nil
	}
	return deps.AdvanceCounter(ctx, a.ID, counter)
}

// RunSetupTOTP stores a fresh, not yet enabled secret for accountID.
func RunSetupTOTP(ctx context.Context, accountID string, deps TOTPDeps) TOTPResult {
	a, res := loadForTOTP(ctx, accountID, deps)
	if a == nil {
		return res
	}
	if a.TOTPEnabled {
		return TOTPResult{Failure: TOTPFailureAlreadyEnabled}
	}

	secret, err := deps.GenerateSecret()
	if err != nil {
		return TOTPResult{Failure: TOTPFailureUnavailable, Err: err}
	}
	if err := deps.SetTOTP(ctx, a.ID, secret, false); err != nil {
		return TOTPResult{Failure: TOTPFailureUnavailable, Err: err}
	}
	return TOTPResult{Secret: secret, URI: deps.ProvisionURI(secret, a.Email)}
}

// RunEnableTOTP turns two-factor on once the user proves the pending secret
// works.
func RunEnableTOTP(ctx context.Context, accountID, code string, deps TOTPDeps) TOTPResult {
	a, res := loadForTOTP(ctx, accountID, deps)
	if a == nil {
		return res
	}
	if a.TOTPEnabled {
		return TOTPResult{Failure: TOTPFailureAlreadyEnabled}
	}
	if a.TOTPSecret == "" {
		return TOTPResult{Failure: TOTPFailureNotEnabled}
	}

	ok, err := RunVerifyTOTP(ctx, a, code, deps)
	if err != nil {
		return TOTPResult{Failure: TOTPFailureUnavailable, Err: err}
	}
	if !ok {
		return TOTPResult{Failure: TOTPFailureInvalidCode}
	}
	if err := deps.SetTOTP(ctx, a.ID, a.TOTPSecret, true); err != nil {
		return TOTPResult{Failure: TOTPFailureUnavailable, Err: err}
	}
	return TOTPResult{}
}

// RunDisableTOTP turns two-factor off after a valid code.
func RunDisableTOTP(ctx context.Context, accountID, code string, deps TOTPDeps) TOTPResult {
	a, res := loadForTOTP(ctx, accountID, deps)
	if a == nil {
		return res
	}
	if !a.TOTPEnabled {
		return TOTPResult{Failure: TOTPFailureNotEnabled}
	}

	ok, err := RunVerifyTOTP(ctx, a, code, deps)
	if err != nil {
		return TOTPResult{Failure: TOTPFailureUnavailable, Err: err}
	}
	if !ok {
		return TOTPResult{Failure: TOTPFailureInvalidCode}
	}
	if err := deps.SetTOTP(ctx, a.ID, "", false); err != nil {
		return TOTPResult{Failure: TOTPFailureUnavailable, Err: err}
	}
	return TOTPResult{}
}

func loadForTOTP(ctx context.Context, accountID string, deps TOTPDeps) (*accounts.Account, TOTPResult) {
	a, err := deps.LoadAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, TOTPResult{Failure: TOTPFailureNotFound, Err: err}
		}
		return nil, TOTPResult{Failure: TOTPFailureUnavailable, Err: err}
	}
	return a, TOTPResult{}
}
