package authgate_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/store/memory"
)

const (
	testRPID     = "example.com"
	testRPName   = "Example Corp"
	testRPOrigin = "https://example.com"
)

// fastTestConfig keeps argon2 costs at the package minimums so engine tests
// stay quick.
func fastTestConfig() authgate.Config {
	cfg := authgate.DefaultConfig()
	cfg.RelyingParty.ID = testRPID
	cfg.RelyingParty.DisplayName = testRPName
	cfg.RelyingParty.Origins = []string{testRPOrigin}
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*authgate.Config)) (*authgate.Engine, *memory.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := fastTestConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := memory.New()
	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(store).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return engine, store, mr
}
