package featureflags_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenguard/greenguard/internal/featureflags"
)

func newService(repo featureflags.Repository, ttl time.Duration) *featureflags.Service {
	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   ttl,
	})
}

func TestService_GetFlag_Defaults(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	ctx := context.Background()

	for _, key := range []string{featureflags.FlagCachedOnlyUpstream, featureflags.FlagDisableRealtimeAlerts} {
		flag := service.GetFlag(ctx, key)
		if flag == nil {
			t.Fatalf("expected default flag %q", key)
		}
		if flag.Key != key {
			t.Errorf("expected key %q, got %q", key, flag.Key)
		}
		if flag.BoolValue(true) {
			t.Errorf("expected %q to be false by default", key)
		}
	}

	if flag := service.GetFlag(ctx, "unknown"); flag != nil {
		t.Errorf("expected nil for unknown flag, got %+v", flag)
	}
}

func TestService_SetFlags(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	ctx := context.Background()

	err := service.SetFlags(ctx, []*featureflags.Flag{
		{Key: featureflags.FlagCachedOnlyUpstream, Value: true},
		{Key: featureflags.FlagDisableRealtimeAlerts, Value: true},
	})
	if err != nil {
		t.Fatalf("failed to set flags: %v", err)
	}

	if !service.IsCachedOnlyUpstream(ctx) {
		t.Error("expected cached only upstream to be enabled")
	}
	if !service.IsRealtimeAlertsDisabled(ctx) {
		t.Error("expected realtime alerts to be disabled")
	}
}

func TestService_GetAllFlags(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	service := newService(repo, time.Minute)
	ctx := context.Background()

	_ = repo.SetFlags(ctx, []*featureflags.Flag{{Key: "experimental", Value: "on"}})

	flags := service.GetAllFlags(ctx)
	for _, key := range []string{featureflags.FlagCachedOnlyUpstream, featureflags.FlagDisableRealtimeAlerts, "experimental"} {
		if _, ok := flags[key]; !ok {
			t.Errorf("expected flag %q to be present", key)
		}
	}
}

func TestService_CacheTTL(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	repo := featureflags.NewInMemoryRepositoryWithFlags(featureflags.DefaultFlags())
	service := featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   time.Minute,
		Now:        clock,
	})
	ctx := context.Background()

	if service.IsCachedOnlyUpstream(ctx) {
		t.Fatal("expected flag to start disabled")
	}

	// Bypass the service so only the repository changes.
	_ = repo.SetFlags(ctx, []*featureflags.Flag{{Key: featureflags.FlagCachedOnlyUpstream, Value: true}})

	if service.IsCachedOnlyUpstream(ctx) {
		t.Error("expected cached value within TTL")
	}

	mu.Lock()
	now = now.Add(61 * time.Second)
	mu.Unlock()

	if !service.IsCachedOnlyUpstream(ctx) {
		t.Error("expected repository value after TTL")
	}
}

func TestService_InvalidateCache(t *testing.T) {
	repo := featureflags.NewInMemoryRepositoryWithFlags(featureflags.DefaultFlags())
	service := newService(repo, time.Hour)
	ctx := context.Background()

	_ = service.GetFlag(ctx, featureflags.FlagDisableRealtimeAlerts)

	_ = repo.SetFlags(ctx, []*featureflags.Flag{{Key: featureflags.FlagDisableRealtimeAlerts, Value: true}})

	service.InvalidateCache()

	if !service.IsRealtimeAlertsDisabled(ctx) {
		t.Error("expected updated value after cache invalidation")
	}
}

type failingRepository struct{}

func (failingRepository) GetFlag(context.Context, string) (*featureflags.Flag, error) {
	return nil, errors.New("connection refused")
}

func (failingRepository) GetAllFlags(context.Context) (map[string]*featureflags.Flag, error) {
	return nil, errors.New("connection refused")
}

func (failingRepository) SetFlags(context.Context, []*featureflags.Flag) error {
	return errors.New("connection refused")
}

func TestService_RepositoryFailureUsesDefaults(t *testing.T) {
	service := newService(failingRepository{}, time.Minute)
	ctx := context.Background()

	if service.IsCachedOnlyUpstream(ctx) {
		t.Error("expected default value when repository fails")
	}

	flags := service.GetAllFlags(ctx)
	if len(flags) != 2 {
		t.Errorf("expected 2 default flags, got %d", len(flags))
	}

	err := service.SetFlags(ctx, []*featureflags.Flag{{Key: featureflags.FlagCachedOnlyUpstream, Value: true}})
	if err == nil {
		t.Error("expected error from failing repository")
	}
	if service.IsCachedOnlyUpstream(ctx) {
		t.Error("failed write must not change the cached value")
	}
}

func TestService_NilRepository(t *testing.T) {
	service := featureflags.NewService(featureflags.ServiceConfig{Logger: zerolog.Nop()})
	ctx := context.Background()

	if err := service.SetFlags(ctx, []*featureflags.Flag{{Key: featureflags.FlagCachedOnlyUpstream, Value: true}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !service.IsCachedOnlyUpstream(ctx) {
		t.Error("expected flag stored in the in-memory repository")
	}
}

func TestFlag_BoolValue(t *testing.T) {
	tests := []struct {
		name         string
		value        interface{}
		defaultValue bool
		want         bool
	}{
		{name: "boolean true", value: true, want: true},
		{name: "boolean false", value: false, defaultValue: true, want: false},
		{name: "non-zero number", value: 42.5, want: true},
		{name: "zero number", value: float64(0), defaultValue: true, want: false},
		{name: "string true", value: "true", want: true},
		{name: "string off", value: "off", defaultValue: true, want: false},
		{name: "unrecognized string", value: "maybe", defaultValue: true, want: true},
		{name: "nil value", value: nil, defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := &featureflags.Flag{Key: "test", Value: tt.value, UpdatedAt: time.Now()}
			if got := flag.BoolValue(tt.defaultValue); got != tt.want {
				t.Errorf("BoolValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlag_NilFlag(t *testing.T) {
	var flag *featureflags.Flag

	if flag.BoolValue(true) != true {
		t.Error("expected default value for nil flag")
	}
}

func TestFlagUpdateRequest_Flags(t *testing.T) {
	req := featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{
			{Key: featureflags.FlagCachedOnlyUpstream, Value: true},
			{Key: "", Value: true},
		},
		Reason: "provider outage",
	}

	flags := req.Flags()
	if len(flags) != 1 {
		t.Fatalf("expected 1 flag, got %d", len(flags))
	}
	if flags[0].Key != featureflags.FlagCachedOnlyUpstream {
		t.Errorf("unexpected key %q", flags[0].Key)
	}
}

func TestInMemoryRepository_GetFlag_NotFound(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()

	_, err := repo.GetFlag(context.Background(), "nonexistent")
	if !errors.Is(err, featureflags.ErrFlagNotFound) {
		t.Errorf("expected ErrFlagNotFound, got %v", err)
	}
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := featureflags.NewInMemoryRepositoryWithFlags(featureflags.DefaultFlags())
	ctx := context.Background()

	flag, err := repo.GetFlag(ctx, featureflags.FlagCachedOnlyUpstream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flag.Value = true

	stored, _ := repo.GetFlag(ctx, featureflags.FlagCachedOnlyUpstream)
	if stored.BoolValue(false) {
		t.Error("mutating a returned flag must not change the repository")
	}
}
