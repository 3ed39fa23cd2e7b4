package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/evotodo/todo-api/internal/config"
)

type S3Deps struct {
	Client    *s3.Client
	Uploader  *manager.Uploader
	Presigner *s3.PresignClient
	Bucket    string
	SSE       *s3types.ServerSideEncryption
}

// NewS3 returns (nil, nil) when no bucket is configured.
func NewS3(ctx context.Context, cfg *config.Config) (*S3Deps, error) {
	if cfg.S3.Bucket == "" {
		return nil, nil
	}

	loadOpts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(cfg.S3.Region),
	}
	if cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		loadOpts = append(loadOpts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		))
	}

	acfg, err := awsCfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	s3Opts := func(o *s3.Options) {
		if ep := strings.TrimSpace(cfg.S3.Endpoint); ep != "" {
			if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
				ep = "https://" + ep
			}
			if u, uerr := url.Parse(ep); uerr == nil {
				o.BaseEndpoint = aws.String(u.String())
			}
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
	}

	client := s3.NewFromConfig(acfg, s3Opts)

	var sse *s3types.ServerSideEncryption
	if cfg.S3.SSE != "" {
		v := s3types.ServerSideEncryption(cfg.S3.SSE)
		sse = &v
	}

	return &S3Deps{
		Client:    client,
		Uploader:  manager.NewUploader(client),
		Presigner: s3.NewPresignClient(client),
		Bucket:    cfg.S3.Bucket,
		SSE:       sse,
	}, nil
}

// PresignGet generates a pre-signed GET URL.
func (s *S3Deps) PresignGet(ctx context.Context, key string, expire time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("key is empty")
	}
	ps, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
	}, func(po *s3.PresignOptions) {
		po.Expires = expire
	})
	if err != nil {
		return "", err
	}
	return ps.URL, nil
}

type UploadedMeta struct {
	Bucket string
	Key    string
	ETag   string
	SHA256 string
	MIME   string
	SizeB  int64
}

// UploadBytes stores data under <keyPrefix>/<yyyy/mm/dd>/<sha256><ext>.
func (s *S3Deps) UploadBytes(ctx context.Context, keyPrefix, ext, contentType string, data []byte) (*UploadedMeta, error) {
	key, sumHex := ObjectKey(keyPrefix, ext, data, time.Now())

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"sha256": sumHex,
		},
	}
	if s.SSE != nil {
		input.ServerSideEncryption = *s.SSE
	}

	out, err := s.Uploader.Upload(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	etag := ""
	if out.ETag != nil {
		etag = *out.ETag
	}
	return &UploadedMeta{
		Bucket: s.Bucket,
		Key:    key,
		ETag:   etag,
		SHA256: sumHex,
		MIME:   contentType,
		SizeB:  int64(len(data)),
	}, nil
}

func ObjectKey(keyPrefix, ext string, data []byte, now time.Time) (key string, sumHex string) {
	sum := sha256.Sum256(data)
	sumHex = hex.EncodeToString(sum[:])
	datePrefix := now.UTC().Format("2006/01/02")
	return fmt.Sprintf("%s/%s/%s%s", strings.TrimSuffix(keyPrefix, "/"), datePrefix, sumHex, ext), sumHex
}
