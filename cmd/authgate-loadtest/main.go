// Command authgate-loadtest measures token check latency on the fast path,
// on the refresh path and under concurrent session invalidation.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/obsvault/authgate"
	"github.com/obsvault/authgate/session"
	"github.com/obsvault/authgate/store/memory"
)

type seeded struct {
	user authgate.User
	pair authgate.AuthTokenPair
}

func main() {
	var (
		users       = pflag.Int("users", 10000, "number of users to seed")
		concurrency = pflag.Int("concurrency", 256, "number of concurrent workers")
		ops         = pflag.Int("ops", 200000, "operations per phase")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	pflag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() { _ = client.Close() }()

	// Shifting the clock forward expires every access token at once.
	var offset atomic.Int64
	now := func() time.Time { return time.Now().Add(time.Duration(offset.Load())) }

	cfg := authgate.DefaultConfig()
	cfg.Tokens.AccessSecret = "loadtest-access-secret-0123456789abcdef"
	cfg.Tokens.RefreshSecret = "loadtest-refresh-secret-0123456789abcdef"
	cfg.Tokens.Issuer = "authgate-loadtest"
	cfg.Tokens.Audience = "obs-vault"
	cfg.Metrics.Enabled = true

	userStore := memory.NewUsers()
	versions := session.NewRedisStore(client, "loadtest")
	svc, err := authgate.New().
		WithConfig(cfg).
		WithUserStore(userStore).
		WithVersionStore(versions).
		WithClock(now).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	states := make([]seeded, *users)
	for i := range states {
		u, err := userStore.Create(ctx, authgate.NewUser{
			Email:               fmt.Sprintf("user-%d@loadtest.local", i),
			UserType:            authgate.UserTypeRegular,
			APIServiceCallLimit: cfg.Accounts.DefaultCallLimit,
		})
		if err == nil {
			_, err = versions.CreateVersion(ctx, u.ID)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		pair, err := svc.CreateAuthTokens(ctx, u)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue tokens: %v\n", err)
			os.Exit(1)
		}
		states[i] = seeded{user: u, pair: pair}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	check := func(ctx context.Context, s *seeded) error {
		_, err := svc.CheckAuthTokens(ctx, s.pair)
		return err
	}
	fastStats := runPhase(ctx, "check (fast path)", states, *ops, *concurrency, check)

	offset.Store(int64(cfg.Tokens.AccessTTL + time.Second))
	refreshStats := runPhase(ctx, "check (refresh)", states, *ops, *concurrency, check)

	invalidateStats := runPhase(ctx, "invalidate", states, *ops, *concurrency, func(ctx context.Context, s *seeded) error {
		_, err := svc.InvalidateAllCurrentRefreshTokensWithUserID(ctx, s.user.ID)
		return err
	})

	fmt.Println("---- results ----")
	if err := writeReport(os.Stdout, []phaseResult{fastStats, refreshStats, invalidateStats}); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
	}

	snap := svc.MetricsSnapshot()
	fmt.Printf("metrics: fast=%d refreshed=%d invalidated=%d store_failures=%d\n",
		snap.Counters[authgate.MetricAccessFastPath],
		snap.Counters[authgate.MetricAccessRefreshed],
		snap.Counters[authgate.MetricSessionsInvalidated],
		snap.Counters[authgate.MetricStoreFailure],
	)
}

func runPhase(ctx context.Context, name string, states []seeded, ops, concurrency int, op func(context.Context, *seeded) error) phaseResult {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				s := &states[r.Intn(len(states))]
				t0 := time.Now()
				err := op(ctx, s)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return newPhaseResult(name, time.Since(start), latencies, failures)
}
