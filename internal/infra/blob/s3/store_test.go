package s3

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"agroconsole/internal/blob/blobtest"
	"agroconsole/internal/blob/core"
)

func TestStoreConformance(t *testing.T) {
	blobtest.Run(t, func(*testing.T) core.Store { return NewMock("") })
}

func TestPrefixIsHidden(t *testing.T) {
	s := NewMock("tenant-a/")
	ctx := context.Background()
	if _, err := s.Put(ctx, "exports/x.json", bytes.NewReader([]byte("[]")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err := s.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "exports/x.json" {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestPresign(t *testing.T) {
	s := NewMock("")
	url, err := s.PresignURL(context.Background(), "exports/x.pdf", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "exports/x.pdf") || !strings.Contains(url, "X-Amz-Expires=60") {
		t.Fatalf("unexpected url %s", url)
	}
	if _, err := s.PresignURL(context.Background(), "x", core.SignedURLOptions{Method: "DELETE"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	raw := "5;chunk-signature=abc\r\nhe\r\nl\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"
	got, err := decodeAWSChunked([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != "he\r\nl" {
		t.Fatalf("got %q", got)
	}
}
