package game

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/store/gormstore"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
	"github.com/stretchr/testify/require"
)

const (
	testSigningKey = "test-signing-key-0123456789"
	testIssuer     = "gameserver-test"
	testPassword   = "hunter22"
)

type stubHasher struct{}

func (stubHasher) Hash(secret string) (string, error) { return "digest:" + secret, nil }
func (stubHasher) Verify(secret string, digest string) bool {
	return strings.HasPrefix(digest, "digest:") && strings.TrimPrefix(digest, "digest:") == secret
}

type manualClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (clock *manualClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

func (clock *manualClock) Advance(step time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.now = clock.now.Add(step)
}

type services struct {
	clock      *manualClock
	tokens     *TokenIssuer
	players    *PlayerService
	jobs       *JobService
	vehicles   *VehicleService
	properties *PropertyService
	ledger     *ledger.Service
	teller     *Teller
}

func newServices(test *testing.T, options ...PlayerOption) *services {
	test.Helper()
	db, driver, err := gormstore.Open(filepath.Join(test.TempDir(), "game.db"), nil)
	require.NoError(test, err)
	require.NoError(test, gormstore.PrepareSchema(db, driver))
	sqlDB, err := db.DB()
	require.NoError(test, err)
	test.Cleanup(func() { _ = sqlDB.Close() })

	clock := newManualClock()
	units := gormstore.New(db, gormstore.WithClock(clock.Now))
	tokens, err := NewTokenIssuer(testSigningKey, testIssuer, time.Hour, clock.Now)
	require.NoError(test, err)
	players, err := NewPlayerService(units, stubHasher{}, tokens, clock.Now, options...)
	require.NoError(test, err)
	jobs, err := NewJobService(units, clock.Now)
	require.NoError(test, err)
	vehicles, err := NewVehicleService(units, clock.Now)
	require.NoError(test, err)
	properties, err := NewPropertyService(units, clock.Now, nil)
	require.NoError(test, err)
	ledgerService, err := ledger.NewService(units, stubHasher{}, clock.Now)
	require.NoError(test, err)
	teller, err := NewTeller(ledgerService, nil)
	require.NoError(test, err)
	return &services{
		clock:      clock,
		tokens:     tokens,
		players:    players,
		jobs:       jobs,
		vehicles:   vehicles,
		properties: properties,
		ledger:     ledgerService,
		teller:     teller,
	}
}
