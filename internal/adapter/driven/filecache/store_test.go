package filecache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

func testKey(kind model.CredentialKind) model.BucketKey {
	return model.NewBucketKey("wx5823bf96d3bd56c7", model.ScopeAgent, "agent-secret", kind)
}

func TestStore_LoadMissingIsMiss(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent"))

	cred, err := s.Load(context.Background(), testKey(model.KindAccessToken))
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestStore_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".wecomkit")
	s := NewStore(dir)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	key := testKey(model.KindAccessToken)

	cred := model.NewCredential(key, model.FetchResult{
		Value:     "tok",
		ExpiresIn: 7200,
		Fields:    map[string]any{"errcode": float64(0), "errmsg": "ok", "expires_in": float64(7200)},
	}, now)
	require.NoError(t, s.Save(ctx, cred))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.Value)
	assert.True(t, got.ExpiresAt.Equal(now.Add(7200*time.Second)))
	assert.True(t, got.ObtainedAt.Equal(now))

	path := filepath.Join(dir, key.Name()+".json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "tok", doc["access_token"])
	assert.Equal(t, "ok", doc["errmsg"])
	assert.InDelta(t, float64(now.Add(7200*time.Second).UnixMilli()), doc["expires_at"], 0)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()
	key := testKey(model.KindAgentTicket)
	now := time.Now()

	require.NoError(t, s.Save(ctx, model.NewCredential(key, model.FetchResult{Value: "t1"}, now)))
	require.NoError(t, s.Save(ctx, model.NewCredential(key, model.FetchResult{Value: "t2"}, now)))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "t2", got.Value)
}

func TestStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid json", content: "{not json"},
		{name: "missing value", content: `{"expires_at": 1700000000000}`},
		{name: "missing expiry", content: `{"access_token": "tok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			key := testKey(model.KindAccessToken)
			require.NoError(t, os.WriteFile(filepath.Join(dir, key.Name()+".json"), []byte(tt.content), 0o600))

			_, err := NewStore(dir).Load(context.Background(), key)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrCacheCorrupt))
			assert.False(t, errors.Is(err, model.ErrCacheIO))
		})
	}
}

func TestStore_LoadLegacyExpiresTime(t *testing.T) {
	dir := t.TempDir()
	key := testKey(model.KindCorpTicket)
	content := `{"errcode":0,"errmsg":"ok","ticket":"legacy","expires_in":7200,"expires_time":1700007200000}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, key.Name()+".json"), []byte(content), 0o600))

	got, err := NewStore(dir).Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "legacy", got.Value)
	assert.Equal(t, int64(1700007200000), got.ExpiresAt.UnixMilli())
}

func TestStore_LoadIOError(t *testing.T) {
	dir := t.TempDir()
	key := testKey(model.KindAccessToken)
	// A directory where the bucket file should be makes ReadFile fail with
	// something other than "not exist".
	require.NoError(t, os.Mkdir(filepath.Join(dir, key.Name()+".json"), 0o700))

	_, err := NewStore(dir).Load(context.Background(), key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCacheIO))
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()
	key := testKey(model.KindAccessToken)

	require.NoError(t, s.Delete(ctx, key), "deleting an empty bucket is not an error")

	require.NoError(t, s.Save(ctx, model.NewCredential(key, model.FetchResult{Value: "tok"}, time.Now())))
	require.NoError(t, s.Delete(ctx, key))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_BucketsAreIsolated(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()
	now := time.Now()

	agent := model.NewBucketKey("corp", model.ScopeAgent, "s", model.KindAccessToken)
	contacts := model.NewBucketKey("corp", model.ScopeContacts, "s", model.KindAccessToken)

	require.NoError(t, s.Save(ctx, model.NewCredential(agent, model.FetchResult{Value: "a"}, now)))

	got, err := s.Load(ctx, contacts)
	require.NoError(t, err)
	assert.Nil(t, got)
}
