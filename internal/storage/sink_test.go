package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, key, contentType, data)
	return args.String(0), args.Error(1)
}

type MockS3API struct {
	mock.Mock
}

func (m *MockS3API) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestFileSink_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "invoices")
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	loc, err := sink.Save(context.Background(), "u3/7/32681724afad/BillFlow_Invoice_2024-05_alice.pdf", "application/pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "u3", "7", "32681724afad", "BillFlow_Invoice_2024-05_alice.pdf"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))
}

func TestFileSink_RejectsEscapingKeys(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	for _, key := range []string{"", ".", "/etc/passwd", "../outside.pdf", "u3/../../outside.pdf", `..\outside.pdf`} {
		_, err := sink.Save(context.Background(), key, "application/pdf", []byte("x"))
		assert.Error(t, err, key)
	}
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "outside.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestDocumentKey(t *testing.T) {
	sha := "32681724afad0000111122223333444455556666777788889999aaaabbbbcccc"
	a := DocumentKey("3", 7, sha, "BillFlow_Invoice_2024-05_alice.pdf")
	b := DocumentKey("4", 9, sha, "BillFlow_Invoice_2024-05_alice.pdf")

	assert.Equal(t, "u3/7/32681724afad0000/BillFlow_Invoice_2024-05_alice.pdf", a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "u3/7/32681724afad0000/evil.pdf", DocumentKey("3", 7, sha, "../../evil.pdf"))
	assert.Equal(t, "u3/7/32681724afad0000/x.pdf", DocumentKey("3", 7, sha, `BillFlow_Invoice_2024-05_a\..\..\..\..\u4\9\x.pdf`))
	assert.Equal(t, "u3/7/32681724afad0000/document.pdf", DocumentKey("3", 7, sha, ".."))
}

func TestFileSink_SameNameDifferentOwners(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	locA, err := sink.Save(ctx, DocumentKey("3", 7, "aaaa", "BillFlow_Invoice_2024-05_alice.pdf"), "application/pdf", []byte("A"))
	require.NoError(t, err)
	locB, err := sink.Save(ctx, DocumentKey("4", 9, "bbbb", "BillFlow_Invoice_2024-05_alice.pdf"), "application/pdf", []byte("B"))
	require.NoError(t, err)

	assert.NotEqual(t, locA, locB)
	data, err := os.ReadFile(locA)
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))
}

func TestNewFileSink_EmptyDir(t *testing.T) {
	_, err := NewFileSink("  ")
	assert.Error(t, err)
}

func TestCompositeSink_CollectsAllErrors(t *testing.T) {
	ctx := context.Background()
	data := []byte("pdf")

	ok := new(MockSink)
	bad1 := new(MockSink)
	bad2 := new(MockSink)
	ok.On("Save", ctx, "a.pdf", "application/pdf", data).Return("/tmp/a.pdf", nil)
	bad1.On("Save", ctx, "a.pdf", "application/pdf", data).Return("", errors.New("s3 down"))
	bad2.On("Save", ctx, "a.pdf", "application/pdf", data).Return("", errors.New("minio down"))

	cs := NewCompositeSink(bad1, ok)
	cs.AddSink(nil)
	cs.AddSink(bad2)
	assert.Equal(t, 3, cs.Len())

	locs, err := cs.SaveAll(ctx, "a.pdf", "application/pdf", data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 down")
	assert.Contains(t, err.Error(), "minio down")
	assert.Equal(t, []string{"/tmp/a.pdf"}, locs)

	ok.AssertExpectations(t)
	bad1.AssertExpectations(t)
	bad2.AssertExpectations(t)
}

func TestCompositeSink_JoinsLocations(t *testing.T) {
	ctx := context.Background()
	a, b := new(MockSink), new(MockSink)
	a.On("Save", ctx, "x.pdf", "application/pdf", []byte("x")).Return("/out/x.pdf", nil)
	b.On("Save", ctx, "x.pdf", "application/pdf", []byte("x")).Return("s3://bucket/x.pdf", nil)

	loc, err := NewCompositeSink(a, b).Save(ctx, "x.pdf", "application/pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "/out/x.pdf,s3://bucket/x.pdf", loc)
}

func TestCompositeSink_Empty(t *testing.T) {
	_, err := NewCompositeSink().Save(context.Background(), "x.pdf", "application/pdf", nil)
	assert.Error(t, err)
}

func TestS3Sink_SaveWithoutPresign(t *testing.T) {
	api := new(MockS3API)
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return aws.ToString(in.Bucket) == "docs" &&
			aws.ToString(in.Key) == "invoices/u3/7/abcd/BillFlow_Invoice_2024-05_alice.pdf" &&
			aws.ToString(in.ContentType) == "application/pdf" &&
			aws.ToString(in.ContentDisposition) == "attachment; filename=BillFlow_Invoice_2024-05_alice.pdf" &&
			string(body) == "pdf"
	})).Return(&s3.PutObjectOutput{}, nil)

	sink := &S3Sink{bucket: "docs", prefix: "invoices", client: api}
	loc, err := sink.Save(context.Background(), "u3/7/abcd/BillFlow_Invoice_2024-05_alice.pdf", "application/pdf", []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, "s3://docs/invoices/u3/7/abcd/BillFlow_Invoice_2024-05_alice.pdf", loc)
	api.AssertExpectations(t)
}

func TestS3Sink_RejectsEscapingKey(t *testing.T) {
	api := new(MockS3API)
	sink := &S3Sink{bucket: "docs", prefix: "invoices", client: api}
	_, err := sink.Save(context.Background(), "../other-tenant/a.pdf", "application/pdf", []byte("pdf"))
	assert.Error(t, err)
	api.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}

func TestS3Sink_PutFailure(t *testing.T) {
	api := new(MockS3API)
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	sink := &S3Sink{bucket: "docs", client: api}
	_, err := sink.Save(context.Background(), "a.pdf", "application/pdf", []byte("pdf"))
	assert.ErrorContains(t, err, "access denied")
}
