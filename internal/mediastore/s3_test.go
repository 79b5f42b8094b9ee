package mediastore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves objects from memory, two keys per list page.
type fakeS3 struct {
	objects map[string]string
	lists   int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{Message: aws.String("missing")}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.lists++
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := min(start+2, len(keys))

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func TestS3FileProvider(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"bot/images.json":      `{"nuke":"images/nuke.gif"}`,
		"bot/images/nuke.gif":  "boom",
		"bot/memes/a.png":      "a",
		"bot/memes/b.png":      "b",
		"bot/memes/cats/c.png": "c",
		"bot/memes/":           "",
	}}
	p := NewS3FileProvider(fake, "media", "bot")
	ctx := context.Background()

	data, err := p.Read(ctx, "images/nuke.gif")
	require.NoError(t, err)
	assert.Equal(t, "boom", string(data))

	_, err = p.Read(ctx, "images/none.gif")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := p.Exists(ctx, "images.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Exists(ctx, "audio.json")
	require.NoError(t, err)
	assert.False(t, ok)

	files, err := p.List(ctx, "memes")
	require.NoError(t, err)
	assert.Equal(t, []string{"memes/a.png", "memes/b.png", "memes/cats/c.png"}, files)
	assert.Equal(t, 2, fake.lists, "listing should follow continuation tokens")

	entries, err := ListDir(ctx, p, "memes")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png", "cats/"}, entries)

	_, err = p.Read(ctx, "../escape")
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestNewS3WithInjectedClient(t *testing.T) {
	p, err := New(context.Background(), Config{Backend: BackendS3, S3Bucket: "media", S3Client: &fakeS3{}})
	require.NoError(t, err)
	assert.IsType(t, &S3FileProvider{}, p)
}
