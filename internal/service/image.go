package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simmer-app/backend/internal/apperror"
)

// ImageService stores user-provided recipe photos in S3.
type ImageService struct {
	client *s3.Client
	bucket string
	region string
	logger *zap.Logger
}

// NewImageService initializes the S3 client from the ambient AWS config.
func NewImageService(ctx context.Context, bucket, region string, logger *zap.Logger) (*ImageService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &ImageService{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		region: region,
		logger: logger,
	}, nil
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// UploadRecipeImage stores the image under a recipe-scoped key and returns
// its public URL.
func (s *ImageService) UploadRecipeImage(ctx context.Context, recipeID uuid.UUID, contentType string, body io.Reader) (string, error) {
	ext, ok := allowedImageTypes[strings.ToLower(contentType)]
	if !ok {
		return "", apperror.Validation(map[string]string{
			"image": fmt.Sprintf("unsupported content type %q", contentType),
		})
	}

	key := path.Join("recipes", recipeID.String(), uuid.New().String()+ext)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", apperror.Wrap(apperror.KindProvider, "failed to upload image", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	s.logger.Info("recipe image uploaded",
		zap.String("recipe_id", recipeID.String()),
		zap.String("key", key),
	)
	return url, nil
}
