package statement

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPut struct {
	path        string
	contentType string
	ifNoneMatch string
}

// fakeS3 answers PutObject requests and remembers what it saw.
type fakeS3 struct {
	mu     sync.Mutex
	puts   []recordedPut
	status int
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		_ = req.Body.Close()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, recordedPut{
		path:        req.URL.Path,
		contentType: req.Header.Get("Content-Type"),
		ifNoneMatch: req.Header.Get("If-None-Match"),
	})
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	body := ""
	if status != http.StatusOK {
		body = `<?xml version="1.0"?><Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>`
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/xml"}, "ETag": {`"etag"`}},
		Request:    req,
	}, nil
}

func newFakeS3Store(t *testing.T, rt *fakeS3) *S3Store {
	t.Helper()
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return NewS3FromClient(client, "statements")
}

func TestS3StorePut(t *testing.T) {
	rt := &fakeS3{}
	store := newFakeS3Store(t, rt)

	err := store.Put(context.Background(), Object{
		Key:         "pools/TR-2026-01/abc/statement-1.json",
		ContentType: "application/json",
		Body:        []byte(`{"pool":{}}`),
	})
	require.NoError(t, err)
	require.Len(t, rt.puts, 1)
	assert.Equal(t, "/statements/pools/TR-2026-01/abc/statement-1.json", rt.puts[0].path)
	assert.Equal(t, "application/json", rt.puts[0].contentType)
	assert.Equal(t, "*", rt.puts[0].ifNoneMatch)
}

func TestS3StorePutRejected(t *testing.T) {
	rt := &fakeS3{status: http.StatusPreconditionFailed}
	store := newFakeS3Store(t, rt)

	err := store.Put(context.Background(), Object{Key: "k", ContentType: "application/json", Body: []byte("{}")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put statement")
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	require.Error(t, err)
}
