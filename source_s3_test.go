package shelterboard

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	calls int
	get   func(calls int) (*s3.GetObjectOutput, error)
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	return f.get(f.calls)
}

func newFakeS3Source(fake *fakeS3) *S3Source {
	return &S3Source{
		client:  fake,
		bucket:  "metrics",
		key:     "shelter.csv",
		retryer: fastRetryer(3),
	}
}

func TestS3SourceFetch(t *testing.T) {
	fake := &fakeS3{get: func(int) (*s3.GetObjectOutput, error) {
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("a,b\n1,2\n"))}, nil
	}}
	src := newFakeS3Source(fake)
	data, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("unexpected payload %q", data)
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 call, got %d", fake.calls)
	}
}

func TestS3SourceRetriesTransientErrors(t *testing.T) {
	fake := &fakeS3{get: func(calls int) (*s3.GetObjectOutput, error) {
		if calls == 1 {
			return nil, errors.New("read tcp: connection reset by peer")
		}
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("payload"))}, nil
	}}
	src := newFakeS3Source(fake)
	if _, err := src.Fetch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("expected 2 calls, got %d", fake.calls)
	}
}

func TestS3SourceEmptyObject(t *testing.T) {
	fake := &fakeS3{get: func(int) (*s3.GetObjectOutput, error) {
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(""))}, nil
	}}
	src := newFakeS3Source(fake)
	_, err := src.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for empty object")
	}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("expected no retry for empty object, got %d calls", fake.calls)
	}
}

func TestS3SourceDescribe(t *testing.T) {
	src := newFakeS3Source(&fakeS3{})
	if src.Describe() != "s3://metrics/shelter.csv" {
		t.Errorf("unexpected description %q", src.Describe())
	}
}

func TestNewS3SourceRequiresBucketAndKey(t *testing.T) {
	if _, err := NewS3Source(S3SourceConfig{Bucket: "metrics"}, DefaultRetryConfig()); err == nil {
		t.Error("expected error without key")
	}
	if _, err := NewS3Source(S3SourceConfig{Key: "x.csv"}, DefaultRetryConfig()); err == nil {
		t.Error("expected error without bucket")
	}
}
