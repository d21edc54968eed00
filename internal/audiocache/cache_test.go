package audiocache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"realty-assistant/internal/domain"
)

type fakeStorage struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	putErr  error
	gets    int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{entries: map[string][]byte{}}
}

func (f *fakeStorage) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (f *fakeStorage) Put(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[key] = append([]byte(nil), data...)
	return nil
}

func TestKey_DeterministicHex(t *testing.T) {
	require.Equal(t, Key("hello"), Key("hello"))
	require.Len(t, Key("hello"), 32)
	require.Equal(t, "5d41402abc4b2a76b9719d911017c592", Key("hello"))
	require.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Key(""))
}

func TestKey_NoNormalization(t *testing.T) {
	require.NotEqual(t, Key("Hello"), Key("hello"))
	require.NotEqual(t, Key("hello"), Key("hello "))
}

func TestKey_DistinctInputsDistinctKeys(t *testing.T) {
	seen := make(map[string]string, 5000)
	for i := 0; i < 5000; i++ {
		text := fmt.Sprintf("listing %d in Dubai Marina", i)
		k := Key(text)
		prev, dup := seen[k]
		require.False(t, dup, "collision between %q and %q", prev, text)
		seen[k] = text
	}
}

func TestNew_ValidatesStorage(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func TestCache_RoundTrip(t *testing.T) {
	c, err := New(newFakeStorage(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := c.Lookup(ctx, "Welcome to Dubai")
	require.False(t, ok)

	require.NoError(t, c.Store(ctx, "Welcome to Dubai", []byte{0xff, 0xfb, 0x90}))
	got, ok := c.Lookup(ctx, "Welcome to Dubai")
	require.True(t, ok)
	require.Equal(t, []byte{0xff, 0xfb, 0x90}, got)

	_, ok = c.Lookup(ctx, "welcome to dubai")
	require.False(t, ok)
}

func TestCache_StoreOverwrites(t *testing.T) {
	c, err := New(newFakeStorage(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, "t", []byte("one")))
	require.NoError(t, c.Store(ctx, "t", []byte("two")))
	got, ok := c.Lookup(ctx, "t")
	require.True(t, ok)
	require.Equal(t, "two", string(got))
}

func TestCache_ReadFailureIsMiss(t *testing.T) {
	s := newFakeStorage()
	s.getErr = errors.New("disk on fire")
	c, err := New(s, nil)
	require.NoError(t, err)

	got, ok := c.Lookup(context.Background(), "anything")
	require.False(t, ok)
	require.Nil(t, got)
}

func TestCache_WriteFailureIsReported(t *testing.T) {
	s := newFakeStorage()
	s.putErr = errors.New("read-only filesystem")
	c, err := New(s, nil)
	require.NoError(t, err)

	err = c.Store(context.Background(), "anything", []byte("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "read-only filesystem")
}

func TestAFSStorage_Validates(t *testing.T) {
	_, err := NewAFSStorage(nil, "mem://localhost/x")
	require.Error(t, err)
	_, err = NewAFSStorage(afs.New(), " ")
	require.Error(t, err)
}

func TestAFSStorage_MemRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewAFSStorage(afs.New(), "mem://localhost/audio-roundtrip/")
	require.NoError(t, err)
	require.Equal(t, "mem://localhost/audio-roundtrip", s.BaseURL())
	require.NoError(t, s.Init(ctx))

	_, err = s.Get(ctx, Key("missing"))
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Put(ctx, Key("hi"), []byte("mp3-bytes")))
	got, err := s.Get(ctx, Key("hi"))
	require.NoError(t, err)
	require.Equal(t, "mp3-bytes", string(got))
}

func TestAFSStorage_FileLayoutSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "audio_cache")

	s, err := NewAFSStorage(afs.New(), dir)
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	c, err := New(s, nil)
	require.NoError(t, err)
	require.NoError(t, c.Store(ctx, "Palm Jumeirah villas", []byte("audio")))

	onDisk, err := os.ReadFile(filepath.Join(dir, Key("Palm Jumeirah villas")+".mp3"))
	require.NoError(t, err)
	require.Equal(t, "audio", string(onDisk))

	// A fresh storage over the same directory sees the entry.
	reopened, err := NewAFSStorage(afs.New(), dir)
	require.NoError(t, err)
	c2, err := New(reopened, nil)
	require.NoError(t, err)
	got, ok := c2.Lookup(ctx, "Palm Jumeirah villas")
	require.True(t, ok)
	require.Equal(t, "audio", string(got))
}
