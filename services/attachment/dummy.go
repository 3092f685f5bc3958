package attachmentsvc

import (
	"context"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/chat"
)

// DummyService keeps uploads in memory; the DEV and TEST Uploader.
type DummyService struct {
	mu    sync.Mutex
	files map[string][]byte // key -> payload

	// Err, when set, fails the next Upload call.
	Err error
}

var _ chat.Uploader = (*DummyService)(nil)

func NewDummyService() *DummyService {
	return &DummyService{files: make(map[string][]byte)}
}

func (svc *DummyService) Upload(ctx context.Context, conversationID string, up chat.Upload) (chat.AttachmentRef, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.Err != nil {
		err := svc.Err
		svc.Err = nil
		return chat.AttachmentRef{}, err
	}

	if up.Body == nil {
		return chat.AttachmentRef{}, errors.New("upload has no body")
	}

	name := path.Base(strings.TrimSpace(up.Name))
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	data, err := io.ReadAll(up.Body)
	if err != nil {
		return chat.AttachmentRef{}, errors.Wrap(err, "reading upload")
	}

	contentType := up.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	key := path.Join("chat", conversationID, uuid.New().String(), name)
	svc.files[key] = data

	return chat.AttachmentRef{
		URL:         "memory://" + key,
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// Get returns a stored payload by the key part of its URL.
func (svc *DummyService) Get(key string) ([]byte, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	data, ok := svc.files[strings.TrimPrefix(key, "memory://")]
	return data, ok
}
