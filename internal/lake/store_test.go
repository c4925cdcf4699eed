package lake

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	body := []byte("line\n")
	require.NoError(t, m.Put(ctx, "raw/a/2025/01/01/x.json", body, PutOptions{Metadata: map[string]string{MetaCompression: CompressionNone}}))
	require.NoError(t, m.Put(ctx, "raw/a/2025/01/02/y.json", []byte("z"), PutOptions{}))
	require.NoError(t, m.Put(ctx, "raw/b/2025/01/01/z.json", []byte("z"), PutOptions{}))
	body[0] = 'X'

	obj, err := m.Get(ctx, "raw/a/2025/01/01/x.json")
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(obj.Body), "store keeps its own copy")
	assert.Equal(t, CompressionNone, obj.Metadata[MetaCompression])

	list, err := m.List(ctx, "raw/a/")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "raw/a/2025/01/01/x.json", list[0].Key)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	m.SetPutHook(func(string) error { return errors.New("down") })
	assert.Error(t, m.Put(ctx, "k", nil, PutOptions{}))
	assert.Equal(t, 3, m.Len())
}

func TestWithRequestTimeout(t *testing.T) {
	t.Run("child deadline is a request timeout", func(t *testing.T) {
		err := WithRequestTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, ErrRequestTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("parent cancellation is not", func(t *testing.T) {
		parent, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRequestTimeout(parent, time.Second, func(ctx context.Context) error {
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrRequestTimeout)
	})

	t.Run("plain errors pass through", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithRequestTimeout(context.Background(), time.Second, func(context.Context) error { return boom })
		assert.Same(t, boom, err)
	})
}

// fakeS3 pages ListObjectsV2 results pageSize at a time.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]*s3.PutObjectInput
	bodies   map[string][]byte
	pageSize int
	lists    int
}

func newFakeS3(pageSize int) *fakeS3 {
	return &fakeS3{objects: map[string]*s3.PutObjectInput{}, bodies: map[string][]byte{}, pageSize: pageSize}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = in
	f.bodies[*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	put, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.bodies[*in.Key])), Metadata: put.Metadata}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	put, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(f.bodies[*in.Key]))), Metadata: put.Metadata}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		i := sort.SearchStrings(keys, tok)
		keys = keys[i:]
	}
	out := &s3.ListObjectsV2Output{}
	if len(keys) > f.pageSize {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[f.pageSize])
		keys = keys[:f.pageSize]
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.bodies[k])))})
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3(2)
	store := NewS3(fake, "lake")

	for _, k := range []string{"raw/s/1", "raw/s/2", "raw/s/3", "raw/s/4", "raw/s/5", "raw/t/1"} {
		require.NoError(t, store.Put(ctx, k, []byte(k), PutOptions{ContentType: ContentTypeJSON}))
	}
	require.NoError(t, store.Put(ctx, "raw/enc", []byte("x"), PutOptions{
		SSEKMSKeyID: "alias/lake",
		Metadata:    map[string]string{MetaEncryption: EncryptionEnvelope},
	}))
	assert.Equal(t, types.ServerSideEncryptionAwsKms, fake.objects["raw/enc"].ServerSideEncryption)
	assert.Equal(t, "alias/lake", aws.ToString(fake.objects["raw/enc"].SSEKMSKeyId))

	list, err := store.List(ctx, "raw/s/")
	require.NoError(t, err)
	assert.Len(t, list, 5, "every page is followed")
	assert.Equal(t, 3, fake.lists)

	obj, err := store.Get(ctx, "raw/enc")
	require.NoError(t, err)
	assert.Equal(t, EncryptionEnvelope, obj.Metadata[MetaEncryption])

	info, err := store.Stat(ctx, "raw/s/1")
	require.NoError(t, err)
	assert.EqualValues(t, len("raw/s/1"), info.Size)

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Stat(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
