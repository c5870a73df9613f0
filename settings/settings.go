package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v2"
)

const redisKey = "mvportal:style"

var ErrNotFound = errors.New("no stored style")

// Store keeps the last used style between sessions. Without a record Load
// returns the defaults along with ErrNotFound.
type Store interface {
	Load(ctx context.Context) (defs.StyleConfig, error)
	Save(ctx context.Context, s defs.StyleConfig) error
	Close() error
}

// Open picks redis when an address (or redis:// URL) is configured and a
// yaml file otherwise.
func Open(redisAddr, file string) (Store, error) {
	if redisAddr != "" {
		opt, err := redis.ParseURL(redisAddr)
		if err != nil {
			if strings.Contains(redisAddr, "://") {
				return nil, fmt.Errorf("redis url: %w", err)
			}
			opt = &redis.Options{Addr: redisAddr}
		}
		return NewRedisStore(redis.NewClient(opt)), nil
	}
	if file == "" {
		file = "style.yaml"
	}
	return &FileStore{Path: file}, nil
}

func decode(b []byte) (s defs.StyleConfig, err error) {
	if err = yaml.Unmarshal(b, &s); err != nil {
		return
	}
	return s.Normalize(), nil
}

type FileStore struct {
	Path string
	mu   sync.Mutex
}

func (f *FileStore) Load(ctx context.Context) (defs.StyleConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return defs.DefaultStyle(), ErrNotFound
	}
	if err != nil {
		return defs.DefaultStyle(), err
	}
	return decode(b)
}

// Save writes through a temp file so a crash never leaves half a record.
func (f *FileStore) Save(ctx context.Context, s defs.StyleConfig) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.Path); dir != "" {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := f.Path + ".tmp"
	if err = os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

func (f *FileStore) Close() error { return nil }

type RedisStore struct {
	rdb *redis.Client
	Key string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, Key: redisKey}
}

func (r *RedisStore) Load(ctx context.Context) (defs.StyleConfig, error) {
	b, err := r.rdb.Get(ctx, r.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return defs.DefaultStyle(), ErrNotFound
	}
	if err != nil {
		return defs.DefaultStyle(), err
	}
	return decode(b)
}

func (r *RedisStore) Save(ctx context.Context, s defs.StyleConfig) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.Key, b, 0).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
