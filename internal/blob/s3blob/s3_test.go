package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/discochess/persona/internal/blob"
)

// fakeAPI stores objects in a map keyed by bucket/key.
type fakeAPI struct {
	objects map[string][]byte
}

func (f *fakeAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestStore_PutGet(t *testing.T) {
	api := &fakeAPI{objects: make(map[string][]byte)}
	ctx := context.Background()

	s, err := New(ctx, "evals", WithClient(api), WithPrefix("/lichess/v1/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Put(ctx, "shards/00042.zst", []byte("payload")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := api.objects["evals/lichess/v1/shards/00042.zst"]; !ok {
		t.Errorf("object stored under unexpected key; have %v", api.objects)
	}

	got, err := s.Get(ctx, "shards/00042.zst")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Get() = %q, want payload", got)
	}
}

func TestStore_GetMissing(t *testing.T) {
	api := &fakeAPI{objects: make(map[string][]byte)}
	s, err := New(context.Background(), "evals", WithClient(api))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = s.Get(context.Background(), "manifest.json")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
