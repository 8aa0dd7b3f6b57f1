package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/internal/otp"
	"github.com/MrEthical07/authcore/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Passw0rd!"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	clock  *testClock
	mail   *notify.Recorder
	audit  *ChannelSink
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "authcore-test"
	cfg.CSRF.Secret = []byte("fedcba9876543210fedcba9876543210")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, accounts.NewGormStore(db).Migrate(context.Background()))

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		mr:    mr,
		clock: &testClock{t: time.Now().UTC().Truncate(time.Second)},
		mail:  &notify.Recorder{},
		audit: NewChannelSink(256),
	}
	env.engine, err = New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDB(db).
		WithClock(env.clock.Now).
		WithNotifier(env.mail).
		WithAuditSink(env.audit).
		Build()
	require.NoError(t, err)

	t.Cleanup(func() {
		env.engine.Close()
		_ = rdb.Close()
		mr.Close()
		_ = sqlDB.Close()
	})
	return env
}

func ipCtx(ip string) context.Context {
	return WithUserAgent(WithClientIP(context.Background(), ip), "test-agent")
}

// registerVerified registers email and redeems its verification token.
func (env *testEnv) registerVerified(t *testing.T, email, username string) *AccountView {
	t.Helper()
	// No client IP, so the per-IP registration throttle does not apply.
	ctx := WithUserAgent(context.Background(), "test-agent")

	view, err := env.engine.Register(ctx, RegisterInput{
		Email:    email,
		Username: username,
		FullName: "Test " + username,
		Password: testPassword,
	})
	require.NoError(t, err)

	msg, ok := env.mail.Last(notify.KindVerifyEmail, view.Email)
	require.True(t, ok, "verification message not sent")
	require.NoError(t, env.engine.VerifyEmail(ctx, msg.Token))
	return view
}

func (env *testEnv) login(t *testing.T, ip, email, pw string) *LoginResult {
	t.Helper()
	res, err := env.engine.Login(ipCtx(ip), LoginInput{Email: email, Password: pw})
	require.NoError(t, err)
	return res
}

func TestRegisterRequiresVerificationBeforeLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := ipCtx("203.0.113.1")

	view, err := env.engine.Register(ctx, RegisterInput{
		Email:    "Ann@Shop.test",
		Username: "ann",
		FullName: "Ann",
		Password: testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "ann@shop.test", view.Email)
	assert.Equal(t, permission.RoleCustomer, view.Role)
	assert.False(t, view.Verified)

	_, err = env.engine.Login(ctx, LoginInput{Email: "ann@shop.test", Password: testPassword})
	assert.ErrorIs(t, err, ErrAccountUnverified)

	msg, ok := env.mail.Last(notify.KindVerifyEmail, "ann@shop.test")
	require.True(t, ok)
	require.NoError(t, env.engine.VerifyEmail(ctx, msg.Token))
	assert.ErrorIs(t, env.engine.VerifyEmail(ctx, msg.Token), ErrInvalidOrExpiredToken)

	res := env.login(t, "203.0.113.1", "ann@shop.test", testPassword)
	assert.True(t, res.Account.Verified)
	assert.NotEmpty(t, res.Tokens.CSRFToken)

	p, err := env.engine.Authorize(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, view.ID, p.AccountID)
	assert.Equal(t, res.Tokens.SessionID, p.SessionID)
	assert.Equal(t, permission.RoleCustomer, p.Role)
	assert.True(t, p.HasPermission("orders.own.read"))
}

func TestRegisterRejectsWeakAndInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := ipCtx("203.0.113.2")

	_, err := env.engine.Register(ctx, RegisterInput{Email: "a@shop.test", Username: "aaa", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = env.engine.Register(ctx, RegisterInput{Email: "not-an-email", Username: "bbb", Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.engine.Register(ctx, RegisterInput{Email: "c@shop.test", Username: "c d", Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterThrottledPerIP(t *testing.T) {
	env := newTestEnv(t)
	ctx := ipCtx("203.0.113.3")

	for i := 0; i < 3; i++ {
		_, err := env.engine.Register(ctx, RegisterInput{
			Email:    fmt.Sprintf("u%d@shop.test", i),
			Username: fmt.Sprintf("user%d", i),
			Password: testPassword,
		})
		require.NoError(t, err)
	}

	_, err := env.engine.Register(ctx, RegisterInput{Email: "u9@shop.test", Username: "user9", Password: testPassword})
	require.ErrorIs(t, err, ErrRateLimited)
	after, ok := RetryAfter(err)
	require.True(t, ok)
	assert.Greater(t, after, time.Duration(0))
}

func TestConcurrentRegistrationSingleWinner(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit.RegisterPerIP = RatePolicy{Limit: 100, Window: time.Hour}
	})

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := env.engine.Register(ipCtx("203.0.113.4"), RegisterInput{
				Email:    "race@shop.test",
				Username: fmt.Sprintf("racer%d", i),
				Password: testPassword,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrDuplicateIdentity)
	}
	assert.Equal(t, 1, wins)
}

func TestLockoutBeatsCorrectPassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "bob@shop.test", "bob")
	ctx := ipCtx("203.0.113.5")

	for i := 1; i <= 4; i++ {
		_, err := env.engine.Login(ctx, LoginInput{Email: "bob@shop.test", Password: "Wrong-pass1"})
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i)
	}
	_, err := env.engine.Login(ctx, LoginInput{Email: "bob@shop.test", Password: "Wrong-pass1"})
	require.ErrorIs(t, err, ErrAccountLocked)

	_, err = env.engine.Login(ipCtx("203.0.113.6"), LoginInput{Email: "bob@shop.test", Password: testPassword})
	require.ErrorIs(t, err, ErrAccountLocked)
	after, ok := RetryAfter(err)
	require.True(t, ok)
	assert.InDelta(t, (30 * time.Minute).Seconds(), after.Seconds(), 1)

	env.clock.Advance(31 * time.Minute)
	env.mr.FastForward(31 * time.Minute)

	res := env.login(t, "203.0.113.6", "bob@shop.test", testPassword)
	assert.NotEmpty(t, res.Tokens.AccessToken)
}

func TestSixthLoginAttemptRateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := ipCtx("203.0.113.7")

	for i := 0; i < 5; i++ {
		_, err := env.engine.Login(ctx, LoginInput{Email: fmt.Sprintf("ghost%d@shop.test", i), Password: "Whatever1!"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := env.engine.Login(ctx, LoginInput{Email: "ghost9@shop.test", Password: "Whatever1!"})
	require.ErrorIs(t, err, ErrRateLimited)
	after, ok := RetryAfter(err)
	require.True(t, ok)
	assert.LessOrEqual(t, after, 15*time.Minute)
	assert.GreaterOrEqual(t, RetryAfterSeconds(after), 1)

	env.mr.FastForward(15*time.Minute + time.Second)
	_, err = env.engine.Login(ctx, LoginInput{Email: "ghost9@shop.test", Password: "Whatever1!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterLoginThenLockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := ipCtx("198.51.100.20")

	view, err := env.engine.Register(ctx, RegisterInput{Email: "a@x.com", Username: "au", FullName: "Au", Password: "Aa1!aaaa"})
	require.NoError(t, err)
	msg, ok := env.mail.Last(notify.KindVerifyEmail, view.Email)
	require.True(t, ok)
	require.NoError(t, env.engine.VerifyEmail(ctx, msg.Token))

	res, err := env.engine.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.SessionID)

	for i := 1; i <= 5; i++ {
		_, err := env.engine.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!bbbb"})
		require.Error(t, err, "attempt %d", i)
		require.True(t, errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrAccountLocked), "attempt %d: %v", i, err)
	}

	_, err = env.engine.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa"})
	require.ErrorIs(t, err, ErrAccountLocked)
}

func TestConcurrentLoginBurstRateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := ipCtx("203.0.113.9")

	const n = 40
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		checked int
		limited int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := env.engine.Login(ctx, LoginInput{Email: fmt.Sprintf("burst%d@shop.test", i), Password: "Wrong-pass1"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				checked++
			case errors.Is(err, ErrRateLimited):
				limited++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, checked, "only the per-IP budget may reach the credential check")
	assert.Equal(t, n-5, limited)
}

func TestTOTPGuessesShareLoginBudget(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "tess@shop.test", "tess")
	res := env.login(t, "203.0.113.30", "tess@shop.test", testPassword)
	ctx := context.Background()
	p, err := env.engine.Authorize(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)

	setup, err := env.engine.SetupTOTP(ctx, p)
	require.NoError(t, err)
	code, err := otp.Default("authcore").Code(setup.Secret, env.clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.engine.EnableTOTP(ctx, p, code))

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		guessed int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := env.engine.Login(ipCtx(fmt.Sprintf("198.51.100.%d", i+1)), LoginInput{
				Email: "tess@shop.test", Password: testPassword, TOTPCode: fmt.Sprintf("%06d", i),
			})
			if errors.Is(err, ErrTOTPInvalid) {
				mu.Lock()
				guessed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, guessed, 5, "wrong codes must be capped by the per-email budget")
}

func TestRefreshIsSingleUseAndReuseRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "cat@shop.test", "cat")
	first := env.login(t, "203.0.113.8", "cat@shop.test", testPassword)
	ctx := context.Background()

	second, err := env.engine.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, first.Tokens.SessionID, second.SessionID)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.RefreshToken)

	_, err = env.engine.Refresh(ctx, first.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	// The replay ended the session, so the current pair is dead too.
	_, err = env.engine.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, err = env.engine.Authorize(ctx, second.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	assert.Equal(t, uint64(1), env.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected])
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "dan@shop.test", "dan")
	res := env.login(t, "203.0.113.9", "dan@shop.test", testPassword)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := env.engine.Refresh(context.Background(), res.Tokens.RefreshToken)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	}
	assert.Equal(t, 1, wins)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "eve@shop.test", "eve")
	res := env.login(t, "203.0.113.10", "eve@shop.test", testPassword)

	_, err := env.engine.Refresh(context.Background(), res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, err = env.engine.Authorize(context.Background(), res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestLogoutBlacklistsAccessTokenInJWTOnlyMode(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.ValidationMode = ModeJWTOnly })
	env.registerVerified(t, "fay@shop.test", "fay")
	res := env.login(t, "203.0.113.11", "fay@shop.test", testPassword)
	ctx := context.Background()

	p, err := env.engine.Authorize(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	require.NoError(t, env.engine.Logout(ctx, p, res.Tokens.RefreshToken))

	_, err = env.engine.Authorize(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, err = env.engine.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestAccessTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "gil@shop.test", "gil")
	res := env.login(t, "203.0.113.12", "gil@shop.test", testPassword)

	env.clock.Advance(16 * time.Minute)
	_, err := env.engine.Authorize(context.Background(), res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestChangePasswordKeepsAccessButKillsRefresh(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.ValidationMode = ModeJWTOnly })
	env.registerVerified(t, "hal@shop.test", "hal")
	res := env.login(t, "203.0.113.13", "hal@shop.test", testPassword)
	ctx := context.Background()

	p, err := env.engine.Authorize(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)

	assert.ErrorIs(t, env.engine.ChangePassword(ctx, p, "Wrong-pass1", "N3w-Passw0rd!"), ErrWrongCurrentPassword)
	assert.ErrorIs(t, env.engine.ChangePassword(ctx, p, testPassword, "weak"), ErrWeakPassword)
	require.NoError(t, env.engine.ChangePassword(ctx, p, testPassword, "N3w-Passw0rd!"))

	_, err = env.engine.Authorize(ctx, res.Tokens.AccessToken)
	assert.NoError(t, err, "access tokens live until expiry in jwt-only mode")
	_, err = env.engine.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = env.engine.Login(ipCtx("203.0.113.13"), LoginInput{Email: "hal@shop.test", Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	env.login(t, "203.0.113.13", "hal@shop.test", "N3w-Passw0rd!")
}

func TestStrictModeRejectsAccessAfterLogoutAll(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "ivy@shop.test", "ivy")
	a := env.login(t, "203.0.113.14", "ivy@shop.test", testPassword)
	b := env.login(t, "203.0.113.15", "ivy@shop.test", testPassword)
	ctx := context.Background()

	p, err := env.engine.Authorize(ctx, a.Tokens.AccessToken)
	require.NoError(t, err)
	n, err := env.engine.LogoutAll(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = env.engine.Authorize(ctx, b.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestCSRFBoundToSession(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "jon@shop.test", "jon")
	a := env.login(t, "203.0.113.16", "jon@shop.test", testPassword)
	b := env.login(t, "203.0.113.17", "jon@shop.test", testPassword)
	ctx := context.Background()

	pa, err := env.engine.Authorize(ctx, a.Tokens.AccessToken)
	require.NoError(t, err)

	assert.NoError(t, env.engine.VerifyCSRF(ctx, pa, a.Tokens.CSRFToken))
	assert.ErrorIs(t, env.engine.VerifyCSRF(ctx, pa, b.Tokens.CSRFToken), ErrCSRFFailure)
	assert.ErrorIs(t, env.engine.VerifyCSRF(ctx, pa, ""), ErrCSRFFailure)

	env.clock.Advance(61 * time.Minute)
	assert.ErrorIs(t, env.engine.VerifyCSRF(ctx, pa, a.Tokens.CSRFToken), ErrCSRFFailure)
}

func TestTOTPLogin(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "kim@shop.test", "kim")
	res := env.login(t, "203.0.113.18", "kim@shop.test", testPassword)
	ctx := context.Background()
	p, err := env.engine.Authorize(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)

	setup, err := env.engine.SetupTOTP(ctx, p)
	require.NoError(t, err)
	assert.Contains(t, setup.URI, "otpauth://totp/")

	gen := otp.TOTP{Issuer: "authcore", Digits: 6, Period: 30, Skew: 1}
	assert.ErrorIs(t, env.engine.EnableTOTP(ctx, p, "000000"), ErrTOTPInvalid)
	code, err := gen.Code(setup.Secret, env.clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.engine.EnableTOTP(ctx, p, code))
	assert.ErrorIs(t, env.engine.EnableTOTP(ctx, p, code), ErrTOTPAlreadyEnabled)

	lctx := ipCtx("203.0.113.19")
	_, err = env.engine.Login(lctx, LoginInput{Email: "kim@shop.test", Password: testPassword})
	require.ErrorIs(t, err, ErrTOTPRequired)

	// The enrollment code already consumed its time step.
	_, err = env.engine.Login(lctx, LoginInput{Email: "kim@shop.test", Password: testPassword, TOTPCode: code})
	require.ErrorIs(t, err, ErrTOTPInvalid)

	env.clock.Advance(30 * time.Second)
	next, err := gen.Code(setup.Secret, env.clock.Now())
	require.NoError(t, err)
	out, err := env.engine.Login(lctx, LoginInput{Email: "kim@shop.test", Password: testPassword, TOTPCode: next})
	require.NoError(t, err)
	assert.True(t, out.Account.TOTPEnabled)

	env.clock.Advance(30 * time.Second)
	off, err := gen.Code(setup.Secret, env.clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.engine.DisableTOTP(ctx, p, off))
	env.login(t, "203.0.113.19", "kim@shop.test", testPassword)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "lou@shop.test", "lou")
	old := env.login(t, "203.0.113.20", "lou@shop.test", testPassword)
	ctx := ipCtx("203.0.113.20")

	require.NoError(t, env.engine.RequestPasswordReset(ctx, "nobody@shop.test"))
	assert.Equal(t, 0, env.mail.Count(notify.KindPasswordReset))

	require.NoError(t, env.engine.RequestPasswordReset(ctx, "LOU@shop.test"))
	msg, ok := env.mail.Last(notify.KindPasswordReset, "lou@shop.test")
	require.True(t, ok)

	assert.ErrorIs(t, env.engine.ResetPassword(ctx, msg.Token, "weak"), ErrWeakPassword)
	require.NoError(t, env.engine.ResetPassword(ctx, msg.Token, "R3set-Passw0rd!"))
	assert.ErrorIs(t, env.engine.ResetPassword(ctx, msg.Token, "R3set-Passw0rd!"), ErrInvalidOrExpiredToken)

	_, err := env.engine.Refresh(ctx, old.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	env.login(t, "203.0.113.20", "lou@shop.test", "R3set-Passw0rd!")

	for i := 0; i < 2; i++ {
		require.NoError(t, env.engine.RequestPasswordReset(ctx, "lou@shop.test"))
	}
	assert.ErrorIs(t, env.engine.RequestPasswordReset(ctx, "lou@shop.test"), ErrRateLimited)
}

func TestResendVerificationIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	ctx := ipCtx("203.0.113.21")

	_, err := env.engine.Register(ctx, RegisterInput{Email: "max@shop.test", Username: "max", Password: testPassword})
	require.NoError(t, err)

	require.NoError(t, env.engine.ResendVerification(ctx, "unknown@shop.test"))
	require.NoError(t, env.engine.ResendVerification(ctx, "max@shop.test"))
	assert.Equal(t, 2, env.mail.Count(notify.KindVerifyEmail))
}

func TestSessionsListAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "ned@shop.test", "ned")
	a := env.login(t, "203.0.113.22", "ned@shop.test", testPassword)
	b := env.login(t, "203.0.113.23", "ned@shop.test", testPassword)
	ctx := context.Background()

	p, err := env.engine.Authorize(ctx, a.Tokens.AccessToken)
	require.NoError(t, err)

	list, err := env.engine.ListSessions(ctx, p)
	require.NoError(t, err)
	require.Len(t, list, 2)
	current := 0
	for _, s := range list {
		if s.Current {
			current++
			assert.Equal(t, a.Tokens.SessionID, s.ID)
		}
	}
	assert.Equal(t, 1, current)

	require.NoError(t, env.engine.RevokeSession(ctx, p, b.Tokens.SessionID))
	assert.ErrorIs(t, env.engine.RevokeSession(ctx, p, b.Tokens.SessionID), ErrSessionNotFound)
	_, err = env.engine.Authorize(ctx, b.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	other := &Principal{AccountID: "someone-else", SessionID: "x"}
	assert.ErrorIs(t, env.engine.RevokeSession(ctx, other, a.Tokens.SessionID), ErrSessionNotFound)
}

func TestAdminChangesCascadeToSessions(t *testing.T) {
	env := newTestEnv(t)
	target := env.registerVerified(t, "oli@shop.test", "oli")
	res := env.login(t, "203.0.113.24", "oli@shop.test", testPassword)
	ctx := context.Background()

	admin := &Principal{AccountID: "admin-1", Role: permission.RoleAdmin}
	super := &Principal{AccountID: "root-1", Role: permission.RoleSuperadmin}

	assert.ErrorIs(t, env.engine.SetRole(ctx, admin, target.ID, permission.RoleSuperadmin), ErrInsufficientRole)
	assert.ErrorIs(t, env.engine.DeleteAccount(ctx, admin, target.ID), ErrInsufficientRole)
	assert.ErrorIs(t, env.engine.SetRole(ctx, &Principal{Role: permission.RoleStaff}, target.ID, permission.RoleStaff), ErrInsufficientRole)

	require.NoError(t, env.engine.SetRole(ctx, admin, target.ID, permission.RoleStaff))
	_, err := env.engine.Authorize(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken, "role change must end sessions")

	again := env.login(t, "203.0.113.24", "oli@shop.test", testPassword)
	p, err := env.engine.Authorize(ctx, again.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, permission.RoleStaff, p.Role)

	require.NoError(t, env.engine.SetActive(ctx, admin, target.ID, false))
	_, err = env.engine.Login(ipCtx("203.0.113.24"), LoginInput{Email: "oli@shop.test", Password: testPassword})
	assert.ErrorIs(t, err, ErrAccountInactive)

	require.NoError(t, env.engine.DeleteAccount(ctx, super, target.ID))
	_, err = env.engine.Me(ctx, &Principal{AccountID: target.ID})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAuthorizeRequestReadsAccessCookie(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "pam@shop.test", "pam")
	res := env.login(t, "203.0.113.25", "pam@shop.test", testPassword)

	r := httptest.NewRequest(http.MethodGet, "/account", nil)
	assert.Nil(t, env.engine.AuthorizeRequest(r))

	r.AddCookie(&http.Cookie{Name: "access_token", Value: res.Tokens.AccessToken})
	p := env.engine.AuthorizeRequest(r)
	require.NotNil(t, p)
	assert.Equal(t, res.Account.ID, p.AccountID)
}

func TestStoreOutageFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "quin@shop.test", "quin")
	res := env.login(t, "203.0.113.26", "quin@shop.test", testPassword)

	env.mr.Close()

	_, err := env.engine.Login(ipCtx("203.0.113.26"), LoginInput{Email: "quin@shop.test", Password: testPassword})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = env.engine.Authorize(context.Background(), res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 503, HTTPStatus(err))
}

func TestAuditRecordsLoginOutcomes(t *testing.T) {
	env := newTestEnv(t)
	view := env.registerVerified(t, "rae@shop.test", "rae")
	_, err := env.engine.Login(ipCtx("203.0.113.27"), LoginInput{Email: "rae@shop.test", Password: "Wrong-pass1"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	env.login(t, "203.0.113.27", "rae@shop.test", testPassword)
	env.engine.Close()

	var types []string
	for {
		select {
		case ev := <-env.audit.Events():
			types = append(types, ev.EventType)
			if ev.EventType == auditEventLoginFailure {
				assert.Equal(t, "invalid_credentials", ev.Error)
				assert.Equal(t, "203.0.113.27", ev.IP)
			}
			if ev.EventType == auditEventLoginSuccess {
				assert.Equal(t, view.ID, ev.AccountID)
				assert.NotEmpty(t, ev.SessionID)
			}
			continue
		default:
		}
		break
	}
	assert.Contains(t, types, auditEventRegisterSuccess)
	assert.Contains(t, types, auditEventEmailVerified)
	assert.Contains(t, types, auditEventLoginFailure)
	assert.Contains(t, types, auditEventLoginSuccess)
}

func TestBuildRequiresDependencies(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	assert.Error(t, err)

	var nilEngine *Engine
	_, err = nilEngine.Login(context.Background(), LoginInput{})
	assert.True(t, errors.Is(err, ErrEngineNotReady))
}
