package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"cratecore/internal/blob/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	info, err := store.Put(ctx, "archives/x/activities.csv", strings.NewReader("id,type\n1,crate\n"), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"records": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" || info.Size == 0 {
		t.Fatalf("expected digest and size, got %+v", info)
	}

	got, rc, err := store.Get(ctx, "archives/x/activities.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != "id,type\n1,crate\n" {
		t.Fatalf("unexpected content: %s", body)
	}
	if got.ContentType != "text/csv" || got.Metadata["records"] != "1" || got.ETag != info.ETag {
		t.Fatalf("sidecar metadata lost: %+v", got)
	}
}

func TestPutRejectsExistingKey(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("one"), core.PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("two"), core.PutOptions{}); err == nil {
		t.Fatalf("second put must fail")
	}
}

func TestKeySanitization(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for _, key := range []string{"", "  ", "../escape", "a/../../b", "/absolute"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err := store.Delete(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, err := store.Head(ctx, "k"); err == nil {
		t.Fatalf("head must fail after delete")
	}
	ok, err = store.Delete(ctx, "k")
	if err != nil || ok {
		t.Fatalf("second delete must report absent: ok=%v err=%v", ok, err)
	}
}

func TestListByPrefix(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for _, key := range []string{"archives/b.json", "archives/a.json", "other/c.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "archives/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "archives/a.json" || infos[1].Key != "archives/b.json" {
		t.Fatalf("expected ordered prefix match, got %+v", infos)
	}
}

func TestPresignGetOnly(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	url, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "GET"})
	if err != nil {
		t.Fatalf("presign get: %v", err)
	}
	if !strings.Contains(url, "/k") {
		t.Fatalf("unexpected url: %s", url)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatalf("presign put must be unsupported")
	}
}
