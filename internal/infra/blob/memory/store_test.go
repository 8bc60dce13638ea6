package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"pharmacore/internal/blob/core"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	info, err := store.Put(ctx, "prescriptions/p1/scan.pdf", strings.NewReader("pdf-bytes"), core.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"uploaded_by": "admin"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("pdf-bytes")) || info.ContentType != "application/pdf" {
		t.Fatalf("unexpected info: %+v", info)
	}

	got, rc, err := store.Get(ctx, "prescriptions/p1/scan.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte("pdf-bytes")) {
		t.Fatalf("content mismatch: %q", data)
	}
	if got.Metadata["uploaded_by"] != "admin" {
		t.Fatalf("expected metadata preserved, got %+v", got.Metadata)
	}
}

func TestPutRejectsExistingKey(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("b"), core.PutOptions{}); err == nil {
		t.Fatal("expected second put to the same key to fail")
	}
}

func TestHeadAndDelete(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("abc"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	info, err := store.Head(ctx, "k")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.Size != 3 {
		t.Fatalf("expected size 3, got %d", info.Size)
	}

	existed, err := store.Delete(ctx, "k")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	if _, err := store.Head(ctx, "k"); err == nil {
		t.Fatal("expected head on deleted blob to fail")
	}
	existed, err = store.Delete(ctx, "k")
	if err != nil || existed {
		t.Fatalf("second delete should report missing: existed=%v err=%v", existed, err)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, key := range []string{"prescriptions/p1/a.png", "prescriptions/p1/b.png", "prescriptions/p2/c.png"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "prescriptions/p1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 blobs under prefix, got %d", len(infos))
	}
	if infos[0].Key != "prescriptions/p1/a.png" || infos[1].Key != "prescriptions/p1/b.png" {
		t.Fatalf("expected keys sorted, got %+v", infos)
	}
}

func TestPresignUnsupported(t *testing.T) {
	store := New()
	_, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "GET"})
	if !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestReturnedContentIsIsolated(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("original"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	buf, _ := io.ReadAll(rc)
	_ = rc.Close()
	for i := range buf {
		buf[i] = 'z'
	}

	_, rc, err = store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	defer func() { _ = rc.Close() }()
	again, _ := io.ReadAll(rc)
	if string(again) != "original" {
		t.Fatalf("mutating returned bytes leaked into store: %q", again)
	}
}
