package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/sentinel"
)

type configStore interface {
	Read(ctx context.Context) (models.SessionConfig, error)
	Write(ctx context.Context, cfg models.SessionConfig) error
}

// StoreSuite runs the same contract against every backend.
type StoreSuite struct {
	suite.Suite
	ctx     context.Context
	newFunc func(t *testing.T) configStore
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newFunc: func(t *testing.T) configStore {
		return NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	}})
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newFunc: func(t *testing.T) configStore {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisStore(client, "kyc:session-config")
	}})
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *StoreSuite) TestReadCreatesDefault() {
	st := s.newFunc(s.T())

	cfg, err := st.Read(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.Default(), cfg)

	again, err := st.Read(s.ctx)
	s.Require().NoError(err)
	s.Equal(cfg, again)
}

func (s *StoreSuite) TestWriteThenRead() {
	st := s.newFunc(s.T())
	want := models.SessionConfig{
		ShortKey: "dz7fZH1",
		Steps:    []models.StepRef{{Key: "A"}, {Key: "B"}},
	}

	s.Require().NoError(st.Write(s.ctx, want))

	got, err := st.Read(s.ctx)
	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *StoreSuite) TestWriteNormalizesNilSteps() {
	st := s.newFunc(s.T())

	s.Require().NoError(st.Write(s.ctx, models.SessionConfig{ShortKey: "abc1234"}))

	got, err := st.Read(s.ctx)
	s.Require().NoError(err)
	s.NotNil(got.Steps)
	s.Empty(got.Steps)
}

func TestFileStoreLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	st := NewFileStore(path)

	require.NoError(t, st.Write(context.Background(), models.SessionConfig{
		ShortKey: "abc1234",
		Steps:    []models.StepRef{{Key: "OTO"}},
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"shortKey\": \"abc1234\",\n  \"steps\": [\n    {\n      \"key\": \"OTO\"\n    }\n  ]\n}", string(raw))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Read(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrCorrupt)
}

func TestFileStoreUnwritableDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "config.json")

	_, err := NewFileStore(path).Read(context.Background())
	assert.ErrorContains(t, err, "create default config")
}

func TestFileStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	assert.ErrorIs(t, st.Write(ctx, models.Default()), context.Canceled)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	st := NewRedisStore(client, "cfg")
	mr.Close()

	_, err := st.Read(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	err = st.Write(context.Background(), models.Default())
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("cfg", "[]"))
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, err := NewRedisStore(client, "cfg").Read(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrCorrupt)
}

func TestRedisStoreStoresJSONDocument(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, NewRedisStore(client, "cfg").Write(context.Background(),
		models.SessionConfig{ShortKey: "k", Steps: []models.StepRef{{Key: "FINISH"}}}))

	raw, err := mr.Get("cfg")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "k", doc["shortKey"])
}
