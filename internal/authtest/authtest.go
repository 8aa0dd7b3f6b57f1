// Package authtest builds a fully wired Engine on miniredis and in-memory
// sqlite for tests of the HTTP layers.
package authtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Password satisfies the default password policy.
const Password = "Passw0rd!"

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type Env struct {
	Engine *authcore.Engine
	Redis  *miniredis.Miniredis
	Clock  *Clock
	Mail   *notify.Recorder
	Audit  *authcore.ChannelSink
}

// Config returns a valid config with cheap password hashing.
func Config() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "authcore-test"
	cfg.CSRF.Secret = []byte("fedcba9876543210fedcba9876543210")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	return cfg
}

func New(t testing.TB, mutate ...func(*authcore.Config)) *Env {
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

	cfg := Config()
	for _, m := range mutate {
		m(&cfg)
	}

	env := &Env{
		Redis: mr,
		Clock: &Clock{t: time.Now().UTC().Truncate(time.Second)},
		Mail:  &notify.Recorder{},
		Audit: authcore.NewChannelSink(256),
	}
	env.Engine, err = authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDB(db).
		WithClock(env.Clock.Now).
		WithNotifier(env.Mail).
		WithAuditSink(env.Audit).
		Build()
	require.NoError(t, err)

	t.Cleanup(func() {
		env.Engine.Close()
		_ = rdb.Close()
		mr.Close()
		_ = sqlDB.Close()
	})
	return env
}

// Register creates a verified account with role.
func (env *Env) Register(t testing.TB, email, username string, role permission.Role) *authcore.AccountView {
	t.Helper()
	ctx := context.Background()

	view, err := env.Engine.Register(ctx, authcore.RegisterInput{
		Email:    email,
		Username: username,
		FullName: "Test " + username,
		Password: Password,
	})
	require.NoError(t, err)

	msg, ok := env.Mail.Last(notify.KindVerifyEmail, view.Email)
	require.True(t, ok, "verification message not sent")
	require.NoError(t, env.Engine.VerifyEmail(ctx, msg.Token))

	if role != "" && role != view.Role {
		root := &authcore.Principal{AccountID: "authtest-root", Role: permission.RoleSuperadmin}
		require.NoError(t, env.Engine.SetRole(ctx, root, view.ID, role))
		view.Role = role
	}
	return view
}

// Login signs email in from ip.
func (env *Env) Login(t testing.TB, ip, email string) *authcore.LoginResult {
	t.Helper()
	ctx := authcore.WithClientIP(context.Background(), ip)
	res, err := env.Engine.Login(ctx, authcore.LoginInput{Email: email, Password: Password})
	require.NoError(t, err)
	return res
}
