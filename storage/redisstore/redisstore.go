// Package redisstore keeps ledger accounts in Redis so several issuers can
// share one ledger. Create-once relies on SETNX.
package redisstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dikanevn/bf/storage"
)

// headerLen is the encoded length of an account minus its data.
const headerLen = 1 + 32 + 8 + 4

// writeScript replaces the value only if the key exists, the header is
// unchanged and the encoded length matches.
var writeScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if not cur then
  return 0
end
if string.len(cur) ~= string.len(ARGV[1]) then
  return -1
end
if string.sub(cur, 1, tonumber(ARGV[2])) ~= string.sub(ARGV[1], 1, tonumber(ARGV[2])) then
  return -2
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces keys; defaults to "bf:acct:".
	Prefix string
}

type Store struct {
	client *redis.Client
	prefix string
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Lister = (*Store)(nil)
)

func New(opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.New("redisstore: addr is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "bf:acct:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) Close() error { return s.client.Close() }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) key(addr storage.Address) string { return s.prefix + addr.String() }

func (s *Store) Allocate(ctx context.Context, addr storage.Address, acct storage.Account) error {
	b, err := storage.EncodeAccount(acct)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(addr), b, 0).Result()
	if err != nil {
		return fmt.Errorf("redisstore: setnx: %w", err)
	}
	if !ok {
		return storage.ErrAlreadyAllocated
	}
	return nil
}

func (s *Store) Read(ctx context.Context, addr storage.Address) (storage.Account, error) {
	b, err := s.client.Get(ctx, s.key(addr)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storage.Account{}, storage.ErrNotFound
		}
		return storage.Account{}, fmt.Errorf("redisstore: get: %w", err)
	}
	return storage.DecodeAccount(b)
}

func (s *Store) Write(ctx context.Context, addr storage.Address, data []byte) error {
	acct, err := s.Read(ctx, addr)
	if err != nil {
		return err
	}
	if len(data) != len(acct.Data) {
		return storage.ErrSizeMismatch
	}
	acct.Data = data
	b, err := storage.EncodeAccount(acct)
	if err != nil {
		return err
	}
	res, err := writeScript.Run(ctx, s.client, []string{s.key(addr)}, b, headerLen).Int()
	if err != nil {
		return fmt.Errorf("redisstore: write: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return storage.ErrNotFound
	case -1:
		return storage.ErrSizeMismatch
	default:
		return fmt.Errorf("redisstore: account %s replaced during write", addr)
	}
}

func (s *Store) Deallocate(ctx context.Context, addr storage.Address) (storage.Account, error) {
	b, err := s.client.GetDel(ctx, s.key(addr)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storage.Account{}, storage.ErrNotFound
		}
		return storage.Account{}, fmt.Errorf("redisstore: getdel: %w", err)
	}
	return storage.DecodeAccount(b)
}

func (s *Store) Has(ctx context.Context, addr storage.Address) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(addr)).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: exists: %w", err)
	}
	return n == 1, nil
}

func (s *Store) Scan(ctx context.Context, fn func(storage.Address, storage.Account) error) error {
	var (
		cursor uint64
		addrs  []storage.Address
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 256).Result()
		if err != nil {
			return fmt.Errorf("redisstore: scan: %w", err)
		}
		for _, k := range keys {
			a, err := storage.ParseAddress(strings.TrimPrefix(k, s.prefix))
			if err != nil {
				continue
			}
			addrs = append(addrs, a)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	seen := make(map[storage.Address]struct{}, len(addrs))
	for _, a := range addrs {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		acct, err := s.Read(ctx, a)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(a, acct); err != nil {
			return err
		}
	}
	return nil
}
