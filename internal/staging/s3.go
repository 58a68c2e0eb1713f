package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/kiranshivaraju/sceneswitch/internal/config"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// objectAPI is the subset of the S3 client the stager uses.
type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Stager uploads assets to a bucket and hands the provider a presigned GET URL.
type S3Stager struct {
	objects    objectAPI
	presign    presignAPI
	bucket     string
	prefix     string
	presignTTL time.Duration
}

// NewS3Stager builds a stager from the default AWS credential chain.
func NewS3Stager(ctx context.Context, cfg config.StagingConfig) (*S3Stager, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return newS3Stager(client, s3.NewPresignClient(client), cfg.S3Bucket, cfg.S3Prefix, cfg.PresignTTL), nil
}

func newS3Stager(objects objectAPI, presign presignAPI, bucket, prefix string, ttl time.Duration) *S3Stager {
	return &S3Stager{
		objects:    objects,
		presign:    presign,
		bucket:     bucket,
		prefix:     prefix,
		presignTTL: ttl,
	}
}

func (s *S3Stager) Stage(ctx context.Context, asset models.MediaAsset) (models.AssetRef, error) {
	if asset.LocalHandle == "" {
		return "", errors.New("asset has no local file")
	}
	key := path.Join(s.prefix, stagedName(asset))

	exists, err := s.exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := s.upload(ctx, key, asset); err != nil {
			return "", err
		}
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return models.AssetRef(req.URL), nil
}

func (s *S3Stager) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head %s: %w", key, err)
}

func (s *S3Stager) upload(ctx context.Context, key string, asset models.MediaAsset) error {
	f, err := os.Open(asset.LocalHandle)
	if err != nil {
		return fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	_, err = s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(asset.ByteSize),
		ContentType:   aws.String(asset.MimeType),
		Metadata: map[string]string{
			"asset-id": asset.ID.String(),
			"filename": asset.DisplayName,
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}
