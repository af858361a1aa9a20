package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"streamctl/internal/core/domain"
	"streamctl/internal/core/ports"
	apperrors "streamctl/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type configFixture struct {
	store    *memStore
	resolver *fakeResolver
	encoder  *fakeEncoder
	cs       *ConfigStore
}

func newConfigFixture(t *testing.T) *configFixture {
	t.Helper()
	f := &configFixture{
		store:    newMemStore(),
		resolver: newFakeResolver(),
		encoder:  &fakeEncoder{},
	}
	f.cs = NewConfigStore(f.store, newFakePipelines("generic/h264.pipeline", "generic/h265.pipeline"),
		f.resolver, f.encoder, nopMetrics{}, zaptest.NewLogger(t).Sugar())
	return f
}

func TestConfigStore_ApplyCommitsAndPersists(t *testing.T) {
	f := newConfigFixture(t)
	ctx := context.Background()

	cfg, err := f.cs.Apply(ctx, validCandidate())
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MinBitrate)
	assert.Equal(t, "ingest.example.com", cfg.SRTLAAddr)
	assert.Equal(t, cfg, f.cs.Snapshot())

	var doc domain.ConfigDocument
	found, err := f.store.Load(ctx, ports.DocumentConfig, &doc)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, cfg, doc.Config)
}

func TestConfigStore_ApplyIsAllOrNothing(t *testing.T) {
	f := newConfigFixture(t)
	ctx := context.Background()

	before, err := f.cs.Apply(ctx, validCandidate())
	require.NoError(t, err)

	bad := validCandidate()
	bad.Delay = intPtr(100)
	bad.MinBitrate = intPtr(500)
	bad.MaxBitrate = intPtr(400)

	_, err = f.cs.Apply(ctx, bad)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, before, f.cs.Snapshot(), "a failing field must not leave partial state")
	assert.Equal(t, 1, f.store.saveCount(ports.DocumentConfig))
}

func TestConfigStore_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *domain.ConfigCandidate)
		wantErr bool
	}{
		{"bitrate full range", func(c *domain.ConfigCandidate) { c.MinBitrate = intPtr(500); c.MaxBitrate = intPtr(12000) }, false},
		{"min bitrate 499", func(c *domain.ConfigCandidate) { c.MinBitrate = intPtr(499) }, true},
		{"min bitrate 12001", func(c *domain.ConfigCandidate) { c.MinBitrate = intPtr(12001); c.MaxBitrate = intPtr(12001) }, true},
		{"min above max", func(c *domain.ConfigCandidate) { c.MinBitrate = intPtr(600); c.MaxBitrate = intPtr(500) }, true},
		{"delay -2000", func(c *domain.ConfigCandidate) { c.Delay = intPtr(-2000) }, false},
		{"delay 2000", func(c *domain.ConfigCandidate) { c.Delay = intPtr(2000) }, false},
		{"delay -2001", func(c *domain.ConfigCandidate) { c.Delay = intPtr(-2001) }, true},
		{"delay 2001", func(c *domain.ConfigCandidate) { c.Delay = intPtr(2001) }, true},
		{"latency 100", func(c *domain.ConfigCandidate) { c.SRTLatency = intPtr(100) }, false},
		{"latency 10000", func(c *domain.ConfigCandidate) { c.SRTLatency = intPtr(10000) }, false},
		{"latency 99", func(c *domain.ConfigCandidate) { c.SRTLatency = intPtr(99) }, true},
		{"latency 10001", func(c *domain.ConfigCandidate) { c.SRTLatency = intPtr(10001) }, true},
		{"empty stream id accepted", func(c *domain.ConfigCandidate) { c.SRTStreamID = strPtr("") }, false},
		{"missing stream id", func(c *domain.ConfigCandidate) { c.SRTStreamID = nil }, true},
		{"port 65535", func(c *domain.ConfigCandidate) { c.SRTLAPort = intPtr(65535) }, false},
		{"port 0", func(c *domain.ConfigCandidate) { c.SRTLAPort = intPtr(0) }, true},
		{"port 65536", func(c *domain.ConfigCandidate) { c.SRTLAPort = intPtr(65536) }, true},
		{"unknown pipeline", func(c *domain.ConfigCandidate) { c.Pipeline = strPtr(string(pipelineID("jetson/none"))) }, true},
		{"missing max bitrate", func(c *domain.ConfigCandidate) { c.MaxBitrate = nil }, true},
		{"ipv6 literal address", func(c *domain.ConfigCandidate) { c.SRTLAAddr = strPtr("2001:db8::10") }, false},
		{"ipv4 literal address", func(c *domain.ConfigCandidate) { c.SRTLAAddr = strPtr("203.0.113.7") }, false},
		{"malformed ipv6 address", func(c *domain.ConfigCandidate) { c.SRTLAAddr = strPtr("2001:db8:::10") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConfigFixture(t)
			c := validCandidate()
			tt.mutate(&c)
			_, err := f.cs.Apply(context.Background(), c)
			if tt.wantErr {
				assert.True(t, apperrors.IsValidation(err), "want validation error, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigStore_FirstFailureWins(t *testing.T) {
	f := newConfigFixture(t)
	c := validCandidate()
	c.Delay = intPtr(5000)
	c.SRTLatency = intPtr(1)

	_, err := f.cs.Apply(context.Background(), c)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "delay", appErr.Context["field"])
}

func TestConfigStore_UnresolvableAddress(t *testing.T) {
	f := newConfigFixture(t)
	f.resolver.fail["nowhere.invalid"] = true
	c := validCandidate()
	c.SRTLAAddr = strPtr("nowhere.invalid")

	_, err := f.cs.Apply(context.Background(), c)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeResolution))
	assert.True(t, apperrors.IsValidation(err))
}

func TestConfigStore_PersistenceFailureKeepsMemory(t *testing.T) {
	f := newConfigFixture(t)
	before := f.cs.Snapshot()
	f.store.failSaves(ports.DocumentConfig, errors.New("read-only file system"))

	_, err := f.cs.Apply(context.Background(), validCandidate())
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistence(err))
	assert.Equal(t, before, f.cs.Snapshot())
}

func TestConfigStore_StaleApplyIsDiscarded(t *testing.T) {
	f := newConfigFixture(t)
	ctx := context.Background()
	release := f.resolver.block("slow.example.com")

	first := validCandidate()
	first.SRTLAAddr = strPtr("slow.example.com")
	first.MaxBitrate = intPtr(3000)

	second := validCandidate()
	second.SRTLAAddr = strPtr("fast.example.com")
	second.MaxBitrate = intPtr(6000)

	type result struct {
		cfg domain.Config
		err error
	}
	firstDone := make(chan result, 1)
	go func() {
		cfg, err := f.cs.Apply(ctx, first)
		firstDone <- result{cfg, err}
	}()

	// Wait for the first apply to take its generation before issuing the second.
	require.Eventually(t, func() bool {
		f.cs.mu.Lock()
		defer f.cs.mu.Unlock()
		return f.cs.issued == 1
	}, time.Second, 5*time.Millisecond)

	cfg, err := f.cs.Apply(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "fast.example.com", cfg.SRTLAAddr)

	close(release)
	res := <-firstDone
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, domain.ErrConfigSuperseded)

	final := f.cs.Snapshot()
	assert.Equal(t, "fast.example.com", final.SRTLAAddr)
	assert.Equal(t, 6000, final.MaxBitrate)

	var doc domain.ConfigDocument
	_, err = f.store.Load(ctx, ports.DocumentConfig, &doc)
	require.NoError(t, err)
	assert.Equal(t, final, doc.Config)
}

func TestConfigStore_ApplyBitrateOnly(t *testing.T) {
	f := newConfigFixture(t)
	ctx := context.Background()
	_, err := f.cs.Apply(ctx, validCandidate())
	require.NoError(t, err)

	br, err := f.cs.ApplyBitrateOnly(ctx, domain.BitrateCandidate{Min: intPtr(800), Max: intPtr(2500)})
	require.NoError(t, err)
	assert.Equal(t, domain.BitrateRange{Min: 800, Max: 2500}, br)
	assert.Equal(t, []domain.BitrateRange{br}, f.encoder.written)
	assert.Equal(t, 1, f.encoder.reloads)

	snap := f.cs.Snapshot()
	assert.Equal(t, 800, snap.MinBitrate)
	assert.Equal(t, "ingest.example.com", snap.SRTLAAddr, "other fields are untouched")

	_, err = f.cs.ApplyBitrateOnly(ctx, domain.BitrateCandidate{Min: intPtr(3000), Max: intPtr(2000)})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 1, f.encoder.reloads)
}

func TestConfigStore_LoadAndPasswordHash(t *testing.T) {
	f := newConfigFixture(t)
	ctx := context.Background()

	stored := domain.ConfigDocument{Config: domain.DefaultConfig(), PasswordHash: "$2a$10$abc"}
	stored.SRTStreamID = "saved"
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	f.store.docs[ports.DocumentConfig] = data

	require.NoError(t, f.cs.Load(ctx))
	assert.Equal(t, "saved", f.cs.Snapshot().SRTStreamID)
	assert.Equal(t, "$2a$10$abc", f.cs.PasswordHash())

	require.NoError(t, f.cs.SetPasswordHash(ctx, "$2a$10$def"))
	var doc domain.ConfigDocument
	_, err = f.store.Load(ctx, ports.DocumentConfig, &doc)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$def", doc.PasswordHash)
	assert.Equal(t, "saved", doc.SRTStreamID)
}

func TestConfigStore_LoadMissingKeepsDefaults(t *testing.T) {
	f := newConfigFixture(t)
	require.NoError(t, f.cs.Load(context.Background()))
	assert.Equal(t, domain.DefaultConfig(), f.cs.Snapshot())
	assert.Empty(t, f.cs.PasswordHash())
}
