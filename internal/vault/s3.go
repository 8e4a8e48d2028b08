package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"qvcs-go/internal/config"
	"qvcs-go/internal/qvcs"
)

// Environment variables holding static S3 credentials. When unset the
// default AWS credential chain is used.
const (
	EnvS3AccessKeyID     = "QVCS_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "QVCS_S3_SECRET_ACCESS_KEY"
)

// s3Client is the subset of *s3.Client the vault uses.
type s3Client interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Vault stores content and metadata as objects in an S3 bucket:
//
//	<prefix>/content/<ab>/<key>
//	<prefix>/metadata/<name>.db
//	<prefix>/metadata/<name>.version
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   s3Client
	uploader *manager.Uploader
}

// NewS3Vault builds an S3 client from the vault config.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if id, secret := os.Getenv(EnvS3AccessKeyID), os.Getenv(EnvS3SecretAccessKey); id != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(id, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3VaultWithClient(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client), nil
}

func newS3VaultWithClient(name, bucket, prefix string, client s3Client) *S3Vault {
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

func (v *S3Vault) objectKey(parts ...string) string {
	return path.Join(append([]string{v.prefix}, parts...)...)
}

func (v *S3Vault) contentKey(key string) string {
	return v.objectKey("content", fanout(key), key)
}

// PutContent uploads a blob under key. Existing keys are not uploaded again.
func (v *S3Vault) PutContent(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	exists, err := v.HasContent(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}
	return v.upload(ctx, v.contentKey(key), r, size)
}

// GetContent downloads the blob stored under key into w.
func (v *S3Vault) GetContent(ctx context.Context, key string, w io.Writer) error {
	if err := validateKey(key); err != nil {
		return err
	}
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.contentKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return fmt.Errorf("content %s: %w", key, qvcs.ErrNotFound)
		}
		return fmt.Errorf("getting content %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

// HasContent reports whether key is stored.
func (v *S3Vault) HasContent(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.contentKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking content %s: %w", key, err)
	}
	return true, nil
}

// PutMetadata uploads a metadata item followed by its version object.
func (v *S3Vault) PutMetadata(ctx context.Context, name string, r io.Reader, size int64, version int64) error {
	if err := validateKey(name); err != nil {
		return err
	}
	if err := v.upload(ctx, v.objectKey("metadata", name+".db"), r, size); err != nil {
		return err
	}
	data := []byte(strconv.FormatInt(version, 10))
	return v.upload(ctx, v.objectKey("metadata", name+".version"), bytes.NewReader(data), int64(len(data)))
}

// GetMetadataVersion returns the version of a metadata item, 0 if absent.
func (v *S3Vault) GetMetadataVersion(ctx context.Context, name string) (int64, error) {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey("metadata", name+".version")),
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, fmt.Errorf("reading version object: %w", err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("vault bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) upload(ctx context.Context, objectKey string, r io.Reader, size int64) error {
	counter := &countingReader{r: r}
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objectKey),
		Body:   counter,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", objectKey, err)
	}
	if counter.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

var _ qvcs.Vault = (*S3Vault)(nil)
