package workbook

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/petlog/internal/sheet"
)

func newFileBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maple.xlsx")
	return New(&FileBlob{Path: path}, nil), path
}

func TestBackend_CreateAppendRead(t *testing.T) {
	ctx := context.Background()
	b, path := newFileBackend(t)

	names, err := b.Worksheets(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, b.Create(ctx, "Feeding", []string{"Date", "Amount"}))
	require.NoError(t, b.Append(ctx, "Feeding", []string{"2024-03-01", "120"}))
	require.NoError(t, b.Append(ctx, "Feeding", []string{"2024-03-02", "90"}))

	// a second backend over the same file sees the saved workbook
	other := New(&FileBlob{Path: path}, nil)
	rows, err := other.ReadAll(ctx, "Feeding")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Date", "Amount"},
		{"2024-03-01", "120"},
		{"2024-03-02", "90"},
	}, rows)

	names, err = other.Worksheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Feeding"}, names)
}

func TestBackend_CreateTwiceFails(t *testing.T) {
	ctx := context.Background()
	b, _ := newFileBackend(t)

	require.NoError(t, b.Create(ctx, "Tasks", []string{"TaskName"}))
	assert.Error(t, b.Create(ctx, "Tasks", []string{"TaskName"}))
}

func TestBackend_MissingWorksheet(t *testing.T) {
	ctx := context.Background()
	b, _ := newFileBackend(t)
	require.NoError(t, b.Create(ctx, "Tasks", []string{"TaskName"}))

	_, err := b.ReadAll(ctx, "Training")
	assert.True(t, sheet.IsNotFound(err))
	assert.True(t, sheet.IsNotFound(b.Append(ctx, "Training", []string{"x"})))
}

func TestBackend_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	b, _ := newFileBackend(t)

	require.NoError(t, b.Create(ctx, "Training", []string{"Date", "Duration"}))
	for _, d := range []string{"10", "20", "30"} {
		require.NoError(t, b.Append(ctx, "Training", []string{"2024-01-01", d}))
	}

	require.NoError(t, b.ReplaceAll(ctx, "Training",
		[]string{"Date", "Duration"},
		[][]string{{"2024-02-02", "45"}},
	))

	rows, err := b.ReadAll(ctx, "Training")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Date", "Duration"}, {"2024-02-02", "45"}}, rows)
}

func TestBackend_UpdateAndDeleteRow(t *testing.T) {
	ctx := context.Background()
	b, _ := newFileBackend(t)

	require.NoError(t, b.Create(ctx, "Tasks", []string{"TaskName", "Status"}))
	require.NoError(t, b.Append(ctx, "Tasks", []string{"Sit", "Active"}))
	require.NoError(t, b.Append(ctx, "Tasks", []string{"Stay", "Active"}))
	require.NoError(t, b.Append(ctx, "Tasks", []string{"Heel", "Active"}))

	require.NoError(t, b.UpdateRow(ctx, "Tasks", 1, []string{"Stay", "Done"}))
	require.NoError(t, b.DeleteRow(ctx, "Tasks", 0))

	rows, err := b.ReadAll(ctx, "Tasks")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"TaskName", "Status"},
		{"Stay", "Done"},
		{"Heel", "Active"},
	}, rows)

	assert.True(t, sheet.IsNotFound(b.DeleteRow(ctx, "Tasks", 2)))
	assert.True(t, sheet.IsNotFound(b.UpdateRow(ctx, "Tasks", 7, []string{"x"})))
}

func TestFileDialer(t *testing.T) {
	dir := t.TempDir()
	dial := FileDialer(dir, nil)

	b, err := dial(context.Background(), "maple")
	require.NoError(t, err)
	require.NoError(t, b.Create(context.Background(), "Feeding", []string{"Date"}))
	assert.FileExists(t, filepath.Join(dir, "maple.xlsx"))

	_, err = FileDialer("", nil)(context.Background(), "maple")
	assert.Error(t, err)
}

// fakeObjects stores objects in memory and can fail with queued errors.
type fakeObjects struct {
	objects map[string][]byte
	fail    []error
	puts    int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) pop() error {
	if len(f.fail) == 0 {
		return nil
	}
	err := f.fail[0]
	f.fail = f.fail[1:]
	return err
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := f.pop(); err != nil {
		return nil, err
	}
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := f.pop(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

type fakeIdentity struct {
	err error
}

func (f fakeIdentity) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{}, f.err
}

func TestS3Blob_RoundTrip(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjects()
	b := New(NewS3Blob("pets", "maple.xlsx", objects, nil), nil)

	require.NoError(t, b.Create(ctx, "TaskLogs", []string{"Date", "TaskName", "Success"}))
	require.NoError(t, b.Append(ctx, "TaskLogs", []string{"2024-05-01", "Sit", "4"}))
	assert.Equal(t, 2, objects.puts)
	assert.Contains(t, objects.objects, "pets/maple.xlsx")

	rows, err := b.ReadAll(ctx, "TaskLogs")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-01", "Sit", "4"}, rows[1])
}

func TestS3Blob_ErrorClassification(t *testing.T) {
	tests := []struct {
		code  string
		check func(error) bool
	}{
		{"SlowDown", sheet.IsRateLimited},
		{"ThrottlingException", sheet.IsRateLimited},
		{"NoSuchBucket", sheet.IsNotFound},
		{"AccessDenied", sheet.IsUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			objects := newFakeObjects()
			objects.fail = []error{&smithy.GenericAPIError{Code: tt.code, Message: "nope"}}
			blob := NewS3Blob("pets", "maple.xlsx", objects, nil)

			_, err := blob.Load(context.Background())
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestS3Blob_MissingKeyIsEmptyWorkbook(t *testing.T) {
	blob := NewS3Blob("pets", "new.xlsx", newFakeObjects(), nil)

	_, err := blob.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoBlob)

	names, err := New(blob, nil).Worksheets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestS3Blob_Check(t *testing.T) {
	ctx := context.Background()

	ok := New(NewS3Blob("pets", "k", newFakeObjects(), fakeIdentity{}), nil)
	assert.NoError(t, ok.Check(ctx))

	denied := New(NewS3Blob("pets", "k", newFakeObjects(), fakeIdentity{
		err: &smithy.GenericAPIError{Code: "ExpiredToken", Message: "expired"},
	}), nil)
	err := denied.Check(ctx)
	require.Error(t, err)
	assert.True(t, sheet.IsUnavailable(err))
	assert.Contains(t, err.Error(), "ExpiredToken")
}

func TestS3Options_Key(t *testing.T) {
	assert.Equal(t, "maple.xlsx", S3Options{}.key("maple"))
	assert.Equal(t, "pets/maple.xlsx", S3Options{Prefix: "pets"}.key("maple"))
	assert.Equal(t, "logs/dog.xlsx", S3Options{Key: "logs/dog.xlsx", Prefix: "pets"}.key("maple"))
}
