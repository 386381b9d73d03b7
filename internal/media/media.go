// Package media stores uploaded product images, in S3 or on local disk.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/config"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxImageSize is the largest accepted upload
const MaxImageSize = 5 << 20

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Store persists image bytes and resolves their public URL
type Store interface {
	Put(ctx context.Context, productID int64, body io.Reader) (string, error)
	URL(filename string) string
}

// Image is a sniffed and size-checked upload
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

// ReadImage reads at most MaxImageSize bytes and checks the content is a supported image type
func ReadImage(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.NewValidationError("image", "Image file is empty")
	}
	if len(data) > MaxImageSize {
		return nil, domain.NewValidationError("image", "Image must be 5MB or smaller")
	}

	mtype := mimetype.Detect(data)
	contentType := strings.SplitN(mtype.String(), ";", 2)[0]
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, domain.NewValidationError("image", "Only JPEG, PNG, WebP and GIF images are accepted")
	}

	return &Image{Data: data, ContentType: contentType, Extension: ext}, nil
}

func objectName(productID int64, ext string) string {
	return fmt.Sprintf("%d/%s%s", productID, uuid.NewString(), ext)
}

// ObjectPutter is the part of the S3 client the store uses
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Store struct {
	client    ObjectPutter
	bucket    string
	prefix    string
	publicURL string
	logger    *zap.Logger
}

// NewS3Store creates an S3 backed store from the default AWS credential chain
func NewS3Store(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info("S3 media store initialised",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
	)

	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg), cfg, logger), nil
}

// NewS3StoreWithClient creates an S3 store around an existing client
func NewS3StoreWithClient(client ObjectPutter, cfg config.StorageConfig, logger *zap.Logger) Store {
	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &s3Store{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		publicURL: publicURL,
		logger:    logger.Named("media"),
	}
}

// Put uploads the image and returns the filename recorded against the product
func (s *s3Store) Put(ctx context.Context, productID int64, body io.Reader) (string, error) {
	img, err := ReadImage(body)
	if err != nil {
		return "", err
	}

	filename := objectName(productID, img.Extension)
	key := s.prefix + filename

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentType:   aws.String(img.ContentType),
		ContentLength: aws.Int64(int64(len(img.Data))),
	})
	if err != nil {
		s.logger.Error("failed to put object",
			zap.Error(err),
			zap.String("bucket", s.bucket),
			zap.String("key", key),
		)
		return "", &domain.UpstreamError{Service: "s3", Err: err}
	}

	s.logger.Info("product image stored",
		zap.Int64("product_id", productID),
		zap.String("key", key),
		zap.Int("bytes", len(img.Data)),
	)

	return filename, nil
}

func (s *s3Store) URL(filename string) string {
	return s.publicURL + "/" + path.Join(strings.TrimSuffix(s.prefix, "/"), filename)
}

type localStore struct {
	dir     string
	urlPath string
}

// NewLocalStore stores images under dir and serves them below urlPath
func NewLocalStore(dir, urlPath string) Store {
	return &localStore{dir: dir, urlPath: strings.TrimRight(urlPath, "/")}
}

func (s *localStore) Put(ctx context.Context, productID int64, body io.Reader) (string, error) {
	img, err := ReadImage(body)
	if err != nil {
		return "", err
	}

	filename := objectName(productID, img.Extension)
	target := filepath.Join(s.dir, filepath.FromSlash(filename))

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := os.WriteFile(target, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return filename, nil
}

func (s *localStore) URL(filename string) string {
	return s.urlPath + "/" + filename
}
