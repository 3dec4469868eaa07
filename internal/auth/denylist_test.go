package auth

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	store map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: map[string]string{}}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.store[key] = "set"
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var n int64
	for _, k := range keys {
		if _, ok := f.store[k]; ok {
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestRevokeAndCheck(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	d := NewDenylist(r)

	jti := "some-token-id"
	if err := d.Revoke(ctx, jti, time.Now().Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	revoked, err := d.Revoked(ctx, jti)
	if err != nil {
		t.Fatal(err)
	}
	if !revoked {
		t.Fatal("expected jti to be revoked")
	}

	revoked, err = d.Revoked(ctx, "other-id")
	if err != nil {
		t.Fatal(err)
	}
	if revoked {
		t.Fatal("unrelated jti should not be revoked")
	}
}

func TestRevokeSkipsExpiredTokens(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	d := NewDenylist(r)

	if err := d.Revoke(ctx, "stale", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if len(r.store) != 0 {
		t.Fatal("already-expired token should not be stored")
	}
}
