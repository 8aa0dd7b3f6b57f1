package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/rate"
)

// RegisterFailureKind classifies registration failures.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureRateLimited
	RegisterFailureInvalid
	RegisterFailureWeakPassword
	RegisterFailureDuplicate
	RegisterFailureUnavailable
)

// RegisterInput is a self-service signup request.
type RegisterInput struct {
	Email    string
	Username string
	FullName string
	Password string
	IP       string
}

// RegisterResult carries the created account or failure metadata.
type RegisterResult struct {
	Failure    RegisterFailureKind
	Err        error
	RetryAfter time.Duration
	Account    *accounts.Account
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	RequireVerified  bool
	Throttle         func(ctx context.Context, ip string) (rate.Decision, error)
	ValidateInput    func(in RegisterInput) error
	CheckPolicy      func(password string) error
	Create           func(ctx context.Context, in accounts.NewAccount) (*accounts.Account, error)
	SendVerification func(ctx context.Context, a *accounts.Account) error
	Warn             func(op string, err error)
}

// RunRegister creates an unverified customer account and requests the
// verification message. No session is created.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) RegisterResult {
	decision, err := deps.Throttle(ctx, in.IP)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureUnavailable, Err: err}
	}
	if !decision.Allowed {
		return RegisterResult{Failure: RegisterFailureRateLimited, RetryAfter: decision.RetryAfter}
	}

	if err := deps.ValidateInput(in); err != nil {
		return RegisterResult{Failure: RegisterFailureInvalid, Err: err}
	}
	if err := deps.CheckPolicy(in.Password); err != nil {
		return RegisterResult{Failure: RegisterFailureWeakPassword, Err: err}
	}

	a, err := deps.Create(ctx, accounts.NewAccount{
		Email:    in.Email,
		Username: in.Username,
		FullName: in.FullName,
		Password: in.Password,
		Verified: !deps.RequireVerified,
	})
	if err != nil {
		if errors.Is(err, accounts.ErrDuplicateIdentity) {
			return RegisterResult{Failure: RegisterFailureDuplicate, Err: err}
		}
		return RegisterResult{Failure: RegisterFailureUnavailable, Err: err}
	}

	if deps.RequireVerified {
		// The account exists either way; a lost message can be re-requested.
		if err := deps.SendVerification(ctx, a); err != nil {
			deps.Warn("register_verification", err)
		}
	}
	return RegisterResult{Account: a}
}
