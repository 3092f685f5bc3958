package attachmentsvc

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/chat"
)

func Test_DummyService_Upload(t *testing.T) {
	ctx := context.Background()
	svc := NewDummyService()

	ref, err := svc.Upload(ctx, "conv-1", chat.Upload{
		Name: " notes.txt ",
		Body: strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if ref.Name != "notes.txt" {
		t.Errorf("Name = %q, want %q", ref.Name, "notes.txt")
	}
	if ref.Size != 5 {
		t.Errorf("Size = %d, want 5", ref.Size)
	}
	if !strings.HasPrefix(ref.URL, "memory://chat/conv-1/") {
		t.Errorf("URL = %q, want a memory://chat/conv-1/ key", ref.URL)
	}
	if !strings.HasPrefix(ref.ContentType, "text/plain") {
		t.Errorf("ContentType = %q, want text/plain", ref.ContentType)
	}

	data, ok := svc.Get(ref.URL)
	if !ok {
		t.Fatalf("Get(%q) found nothing", ref.URL)
	}
	if string(data) != "hello" {
		t.Errorf("stored payload = %q, want %q", data, "hello")
	}
}

func Test_DummyService_Upload_nilBody(t *testing.T) {
	svc := NewDummyService()

	if _, err := svc.Upload(context.Background(), "conv-1", chat.Upload{Name: "notes.txt"}); err == nil {
		t.Error("Upload() with a nil body should fail, not panic")
	}
}

func Test_DummyService_Upload_errInjection(t *testing.T) {
	ctx := context.Background()
	svc := NewDummyService()
	svc.Err = errors.New("storage down")

	if _, err := svc.Upload(ctx, "conv-1", chat.Upload{Name: "a", Body: strings.NewReader("x")}); err == nil {
		t.Fatal("Upload() should surface the injected error")
	}
	// the injected error fails exactly one call
	if _, err := svc.Upload(ctx, "conv-1", chat.Upload{Name: "a", Body: strings.NewReader("x")}); err != nil {
		t.Fatalf("Upload() after the injected error failed: %v", err)
	}
}
