package attachmentsvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/chat"
)

type s3Service struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
}

var _ chat.Uploader = (*s3Service)(nil)

// NewS3Service returns an Uploader backed by an S3 bucket. Credentials come
// from the default AWS chain (env, shared config, instance role).
func NewS3Service(ctx context.Context, conf *core.Config) (chat.Uploader, error) {
	awsConf, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(conf.Attachments.Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	return &s3Service{
		client:  s3.NewFromConfig(awsConf),
		bucket:  conf.Attachments.Bucket,
		region:  conf.Attachments.Region,
		baseURL: strings.TrimSuffix(conf.Attachments.BaseURL, "/"),
	}, nil
}

func (svc *s3Service) Upload(ctx context.Context, conversationID string, up chat.Upload) (chat.AttachmentRef, error) {
	if up.Body == nil {
		return chat.AttachmentRef{}, errors.New("upload has no body")
	}

	name := path.Base(strings.TrimSpace(up.Name))
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	key := path.Join("chat", conversationID, uuid.New().String(), name)

	body := up.Body
	contentType := up.ContentType
	if contentType == "" {
		// DetectReader consumes the sniff header; stitch it back in front.
		var buf bytes.Buffer
		mtype, err := mimetype.DetectReader(io.TeeReader(up.Body, &buf))
		if err != nil {
			return chat.AttachmentRef{}, errors.Wrap(err, "sniffing content type")
		}
		contentType = mtype.String()
		body = io.MultiReader(&buf, up.Body)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(svc.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if up.Size > 0 {
		input.ContentLength = aws.Int64(up.Size)
	}
	if _, err := svc.client.PutObject(ctx, input); err != nil {
		return chat.AttachmentRef{}, errors.Wrapf(err, "putting s3://%s/%s", svc.bucket, key)
	}

	return chat.AttachmentRef{
		URL:         svc.url(key),
		Name:        name,
		Size:        up.Size,
		ContentType: contentType,
	}, nil
}

func (svc *s3Service) url(key string) string {
	if svc.baseURL != "" {
		return svc.baseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", svc.bucket, svc.region, key)
}
