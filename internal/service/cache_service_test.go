package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

type mockCacheRepo struct {
	data    map[string][]byte
	setErr  error
	dropped []string
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.Clone(appErrors.ErrCacheMiss, "")
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *mockCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.dropped = append(m.dropped, pattern)
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := &mockCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	require.NoError(t, svc.Set(context.Background(), "k1", map[string]int{"n": 7}, 0))

	var out map[string]int
	require.NoError(t, svc.Get(context.Background(), "k1", &out))
	assert.Equal(t, 7, out["n"])
}

func TestCacheServiceMiss(t *testing.T) {
	svc := NewCacheService(&mockCacheRepo{}, nil, time.Minute, nil, true)

	var out string
	err := svc.Get(context.Background(), "absent", &out)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCacheMiss.Code, appErrors.FromError(err).Code)
}

func TestCacheServiceDisabledBehavesAsMiss(t *testing.T) {
	svc := NewCacheService(&mockCacheRepo{}, nil, time.Minute, nil, false)

	var out string
	err := svc.Get(context.Background(), "k1", &out)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCacheMiss.Code, appErrors.FromError(err).Code)
	assert.NoError(t, svc.Set(context.Background(), "k1", "v", 0))
}

func TestCacheServiceSetFailureNotPropagated(t *testing.T) {
	repo := &mockCacheRepo{setErr: errors.New("redis down")}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	assert.NoError(t, svc.Set(context.Background(), "k1", "v", 0))
}

func TestCacheServiceInvalidate(t *testing.T) {
	repo := &mockCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	require.NoError(t, svc.Invalidate(context.Background(), "report:*"))
	assert.Contains(t, repo.dropped, "report:*")
}
