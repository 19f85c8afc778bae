package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamup/ui-locator/internal/frame"
	"github.com/dreamup/ui-locator/internal/locator"
)

type putCall struct {
	key         string
	contentType string
	body        []byte
}

type fakeS3 struct {
	mu    sync.Mutex
	fails []error
	calls []putCall
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := io.ReadAll(in.Body)
	f.calls = append(f.calls, putCall{key: aws.ToString(in.Key), contentType: aws.ToString(in.ContentType), body: body})
	if len(f.fails) > 0 {
		err := f.fails[0]
		f.fails = f.fails[1:]
		return nil, err
	}
	return &s3.PutObjectOutput{}, nil
}

type statusError struct{ code int }

func (e statusError) Error() string       { return "http status" }
func (e statusError) HTTPStatusCode() int { return e.code }

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func unresolvedResult() locator.Result {
	return locator.Result{
		Strategy: locator.StrategyUnresolved,
		Metadata: map[string]any{
			"error":      "all strategies exhausted",
			"resolution": "320x200",
			"attempts": []locator.Attempt{
				{Strategy: locator.StrategyMLPredictor, Outcome: locator.OutcomeMiss},
				{Strategy: locator.StrategyAnalyzer, Outcome: locator.OutcomeError, Reason: "boom"},
				{Strategy: locator.StrategyOCR, Outcome: locator.OutcomeSkipped},
			},
		},
	}
}

func TestBuild_Unresolved(t *testing.T) {
	rb := NewReportBuilder("submit_button")
	rb.SetLabels([]string{"submit", "send"})
	rb.SetResult(unresolvedResult())
	rb.AddMetadata("source", "file")

	r, err := rb.Build()
	require.NoError(t, err)
	assert.Len(t, r.ReportID, 36)
	assert.Equal(t, StatusUnresolved, r.Summary.Status)
	assert.Equal(t, []string{locator.StrategyAnalyzer}, r.Summary.FailedStrategies)
	assert.Equal(t, "all strategies exhausted", r.Outcome.Error)
	assert.Equal(t, "320x200", r.Resolution)
	assert.Nil(t, r.Outcome.Coords)
	assert.Len(t, r.Attempts, 3)
	assert.Equal(t, "file", r.Metadata["source"])
}

func TestBuild_ResolvedStatus(t *testing.T) {
	for _, tc := range []struct {
		confidence float64
		want       string
	}{
		{0.9, StatusResolved},
		{0.4, StatusResolvedLowConfidence},
	} {
		rb := NewReportBuilder("login_button")
		rb.SetResult(locator.Result{
			Coords:     &frame.Point{X: 10, Y: 20},
			Strategy:   locator.StrategyTemplate,
			Confidence: tc.confidence,
			Metadata:   map[string]any{},
		})
		r, err := rb.Build()
		require.NoError(t, err)
		assert.Equal(t, tc.want, r.Summary.Status)
		assert.Empty(t, r.Summary.FailedStrategies)
	}
}

func TestBuild_RequiresResult(t *testing.T) {
	_, err := NewReportBuilder("x").Build()
	assert.Error(t, err)
}

func TestSaveToFile(t *testing.T) {
	rb := NewReportBuilder("email_field")
	rb.SetResult(unresolvedResult())
	r, err := rb.Build()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.SaveToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "email_field", decoded["element_type"])
	assert.Equal(t, StatusUnresolved, decoded["summary"].(map[string]any)["status"])
}

func TestUploadBytes_RetriesTransientErrors(t *testing.T) {
	client := &fakeS3{fails: []error{errors.New("connection reset"), statusError{503}}}
	u := NewS3UploaderWithClient(client, "bucket", "eu-west-1", nil).WithRetry(fastRetry())

	url, err := u.UploadBytes(context.Background(), []byte("x"), "a/b.json", "application/json")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.eu-west-1.amazonaws.com/a/b.json", url)
	assert.Len(t, client.calls, 3)
}

func TestUploadBytes_ClientErrorNotRetried(t *testing.T) {
	client := &fakeS3{fails: []error{statusError{403}}}
	u := NewS3UploaderWithClient(client, "bucket", "us-east-1", nil).WithRetry(fastRetry())

	_, err := u.UploadBytes(context.Background(), []byte("x"), "k", "text/plain")
	require.Error(t, err)
	assert.Len(t, client.calls, 1)
}

func TestUploadBytes_GivesUp(t *testing.T) {
	client := &fakeS3{fails: []error{statusError{500}, statusError{500}, statusError{429}}}
	u := NewS3UploaderWithClient(client, "bucket", "us-east-1", nil).WithRetry(fastRetry())

	_, err := u.UploadBytes(context.Background(), []byte("x"), "k", "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retry attempts (3)")
	assert.Len(t, client.calls, 3)
}

func TestArchiveUnresolved(t *testing.T) {
	client := &fakeS3{}
	u := NewS3UploaderWithClient(client, "bucket", "us-east-1", nil).WithRetry(fastRetry())

	rb := NewReportBuilder("submit_button")
	rb.SetResult(unresolvedResult())
	r, err := rb.Build()
	require.NoError(t, err)

	f := frame.New(image.NewRGBA(image.Rect(0, 0, 8, 8)), "test")
	url, err := u.ArchiveUnresolved(context.Background(), r, f)
	require.NoError(t, err)
	assert.Equal(t, u.GetReportURL(r.ReportID), url)

	require.Len(t, client.calls, 2)
	assert.Equal(t, "image/png", client.calls[0].contentType)
	assert.True(t, strings.HasPrefix(client.calls[0].key, "reports/"+r.ReportID+"/frame_"))
	assert.Equal(t, "reports/"+r.ReportID+"/report.json", client.calls[1].key)
	assert.Contains(t, string(client.calls[1].body), r.Evidence.FrameS3URL)
	assert.NotEmpty(t, r.Evidence.FrameS3URL)
}

func TestUploadSnapshot(t *testing.T) {
	client := &fakeS3{}
	u := NewS3UploaderWithClient(client, "bucket", "us-east-1", nil)

	path := filepath.Join(t.TempDir(), "training.db")
	require.NoError(t, os.WriteFile(path, []byte("sqlite"), 0644))

	_, err := u.UploadSnapshot(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, client.calls, 1)
	assert.True(t, strings.HasPrefix(client.calls[0].key, "snapshots/"))
	assert.True(t, strings.HasSuffix(client.calls[0].key, "_training.db"))
	assert.Equal(t, "application/vnd.sqlite3", client.calls[0].contentType)

	_, err = u.UploadSnapshot(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 2}, func() error {
		calls++
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCalculateDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, calculateDelay(0, cfg))
	assert.Equal(t, 4*time.Second, calculateDelay(2, cfg))
	assert.Equal(t, 5*time.Second, calculateDelay(5, cfg))
}
