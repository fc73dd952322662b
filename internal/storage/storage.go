package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const presignTTL = 5 * time.Minute

// Storage hands out presigned PUT URLs against an S3-compatible bucket;
// clients upload directly, the API never proxies image bytes.
type Storage struct {
	client        *s3.Client
	bucket        string
	publicURLBase string
}

func New(endpoint, accessKey, secretKey, bucket, publicURLBase string) *Storage {
	client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})

	return &Storage{
		client:        client,
		bucket:        bucket,
		publicURLBase: strings.TrimRight(publicURLBase, "/"),
	}
}

type PresignedUpload struct {
	UploadURL string    `json:"upload_url"`
	ObjectKey string    `json:"object_key"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Storage) PresignUpload(ctx context.Context, objectKey, contentType string) (*PresignedUpload, error) {
	presignClient := s3.NewPresignClient(s.client)

	req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignTTL
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &PresignedUpload{
		UploadURL: req.URL,
		ObjectKey: objectKey,
		PublicURL: s.PublicURL(objectKey),
		ExpiresAt: time.Now().Add(presignTTL),
	}, nil
}

func (s *Storage) PublicURL(objectKey string) string {
	return s.publicURLBase + "/" + objectKey
}
