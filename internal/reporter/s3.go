package reporter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/frame"
)

// PutObjectAPI is the subset of the S3 client the uploader needs
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader handles uploading artifacts to S3
type S3Uploader struct {
	client     PutObjectAPI
	bucketName string
	region     string
	retry      RetryConfig
	logger     *zap.Logger
}

// NewS3Uploader creates an uploader using the default AWS credential chain
func NewS3Uploader(ctx context.Context, bucketName, region string, logger *zap.Logger) (*S3Uploader, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if region == "" {
		region = os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3UploaderWithClient(s3.NewFromConfig(cfg), bucketName, region, logger), nil
}

// NewS3UploaderWithClient creates an uploader around an existing client
func NewS3UploaderWithClient(client PutObjectAPI, bucketName, region string, logger *zap.Logger) *S3Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Uploader{
		client:     client,
		bucketName: bucketName,
		region:     region,
		retry:      DefaultRetryConfig(),
		logger:     logger.With(zap.String("component", "reporter"), zap.String("bucket", bucketName)),
	}
}

// WithRetry overrides the retry policy
func (u *S3Uploader) WithRetry(cfg RetryConfig) *S3Uploader {
	u.retry = cfg
	return u
}

// URL returns the object URL for key
func (u *S3Uploader) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucketName, u.region, key)
}

// UploadBytes uploads data under key, retrying transient failures
func (u *S3Uploader) UploadBytes(ctx context.Context, data []byte, key, contentType string) (string, error) {
	err := Retry(ctx, u.retry, func() error {
		_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			u.logger.Debug("upload attempt failed", zap.String("key", key), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}

	u.logger.Debug("uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return u.URL(key), nil
}

// UploadFile uploads a local file
func (u *S3Uploader) UploadFile(ctx context.Context, path, key string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return u.UploadBytes(ctx, data, key, contentType(path))
}

// contentType determines content type from file extension
func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".db", ".sqlite":
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}

// UploadFrame uploads a frame as PNG under the report's prefix
func (u *S3Uploader) UploadFrame(ctx context.Context, f *frame.Frame, reportID string) (string, error) {
	data, err := f.PNG()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("reports/%s/frame_%s.png", reportID, f.Timestamp.Format("20060102_150405"))
	return u.UploadBytes(ctx, data, key, "image/png")
}

// UploadReport uploads a report JSON
func (u *S3Uploader) UploadReport(ctx context.Context, r *Report) (string, error) {
	data, err := r.JSON()
	if err != nil {
		return "", err
	}
	return u.UploadBytes(ctx, data, u.reportKey(r.ReportID), "application/json")
}

// ArchiveUnresolved uploads the frame of an unresolved call and then its
// report, which links to the frame
func (u *S3Uploader) ArchiveUnresolved(ctx context.Context, r *Report, f *frame.Frame) (string, error) {
	if f != nil {
		frameURL, err := u.UploadFrame(ctx, f, r.ReportID)
		if err != nil {
			return "", fmt.Errorf("failed to upload frame: %w", err)
		}
		r.Evidence.FrameS3URL = frameURL
	}

	reportURL, err := u.UploadReport(ctx, r)
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}
	u.logger.Info("unresolved call archived", zap.String("report_id", r.ReportID), zap.String("url", reportURL))
	return reportURL, nil
}

// UploadSnapshot uploads a training store snapshot file
func (u *S3Uploader) UploadSnapshot(ctx context.Context, path string) (string, error) {
	key := fmt.Sprintf("snapshots/%s_%s", time.Now().UTC().Format("20060102_150405"), filepath.Base(path))
	return u.UploadFile(ctx, path, key)
}

// GetReportURL returns the S3 URL for a report
func (u *S3Uploader) GetReportURL(reportID string) string {
	return u.URL(u.reportKey(reportID))
}

func (u *S3Uploader) reportKey(reportID string) string {
	return fmt.Sprintf("reports/%s/report.json", reportID)
}
