package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 answers the object calls the driver makes with path-style URLs.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func respond(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: header}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	if len(parts) != 2 {
		return respond(http.StatusBadRequest, "", nil), nil
	}
	key := parts[1]
	data, exists := f.objects[key]
	header := http.Header{
		"Content-Length": {fmt.Sprint(len(data))},
		"Content-Type":   {f.types[key]},
		"Etag":           {`"abc"`},
	}

	switch req.Method {
	case http.MethodHead:
		if !exists {
			return respond(http.StatusNotFound, "", nil), nil
		}
		return respond(http.StatusOK, "", header), nil
	case http.MethodGet:
		if !exists {
			return respond(http.StatusNotFound, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`,
				http.Header{"Content-Type": {"application/xml"}}), nil
		}
		resp := respond(http.StatusOK, "", header)
		resp.Body = io.NopCloser(bytes.NewReader(data))
		return resp, nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = body
		f.types[key] = req.Header.Get("Content-Type")
		return respond(http.StatusOK, "", http.Header{"Etag": {`"abc"`}}), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, "", nil), nil
	}
	return respond(http.StatusNotImplemented, "", nil), nil
}

func newTestS3(t *testing.T) *S3 {
	t.Helper()
	fake := newFakeS3()
	s, err := NewS3(context.Background(), S3Config{
		Bucket:          "cmdb",
		Endpoint:        "https://s3.test.local",
		PathStyle:       true,
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		o.RetryMaxAttempts = 1
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestS3(t *testing.T) {
	s := newTestS3(t)
	ctx := context.Background()

	info, err := s.Put(ctx, "files/f1/a.txt", bytes.NewReader([]byte("hello")), PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != 5 || info.ETag != "abc" {
		t.Errorf("info = %+v", info)
	}

	_, rc, err := s.Get(ctx, "files/f1/a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "hello" {
		t.Errorf("body = %q", body)
	}

	if _, _, err := s.Get(ctx, "files/missing"); err == nil || !strings.Contains(err.Error(), ErrNotFound.Error()) {
		t.Errorf("Get missing error = %v", err)
	}

	existed, err := s.Delete(ctx, "files/f1/a.txt")
	if err != nil || !existed {
		t.Errorf("Delete = %v, %v", existed, err)
	}
	existed, _ = s.Delete(ctx, "files/f1/a.txt")
	if existed {
		t.Error("second Delete reported an existing blob")
	}
}

func TestS3_PresignURL(t *testing.T) {
	s := newTestS3(t)

	u, err := s.PresignURL(context.Background(), "files/f1/a.txt", SignedURLOptions{Filename: "setlist.pdf"})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	for _, want := range []string{"https://s3.test.local/cmdb/files/f1/a.txt", "X-Amz-Signature=", "response-content-disposition="} {
		if !strings.Contains(u, want) {
			t.Errorf("url %q missing %q", u, want)
		}
	}
}
