package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// storeContract runs the behavior every driver must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	info, err := s.Put(ctx, "files/f1/a.txt", strings.NewReader("hello"), PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != 5 {
		t.Errorf("Size = %d, want 5", info.Size)
	}

	if _, err := s.Put(ctx, "files/f1/a.txt", strings.NewReader("again"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Errorf("second Put error = %v, want ErrExists", err)
	}

	got, rc, err := s.Get(ctx, "files/f1/a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "hello" {
		t.Errorf("body = %q", body)
	}
	if got.ContentType != "text/plain" {
		t.Errorf("ContentType = %q", got.ContentType)
	}

	if _, err := s.Head(ctx, "files/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Head missing error = %v, want ErrNotFound", err)
	}
	if _, _, err := s.Get(ctx, "files/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing error = %v, want ErrNotFound", err)
	}

	existed, err := s.Delete(ctx, "files/f1/a.txt")
	if err != nil || !existed {
		t.Errorf("Delete = %v, %v", existed, err)
	}
	existed, err = s.Delete(ctx, "files/f1/a.txt")
	if err != nil || existed {
		t.Errorf("second Delete = %v, %v", existed, err)
	}
}

func TestMemory(t *testing.T) {
	storeContract(t, NewMemory())
}

func TestFilesystem(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	storeContract(t, fs)

	if _, err := fs.PresignURL(context.Background(), "x", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("PresignURL error = %v", err)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"files/a/b.pdf", false},
		{"", true},
		{"/etc/passwd", true},
		{"files/../../etc", true},
		{`files\a`, true},
	}
	for _, tt := range tests {
		_, err := sanitizeKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("sanitizeKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("Open memory = %v, %v", s, err)
	}
	s, err = Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("Open default = %v, %v", s, err)
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Error("expected error for unknown driver")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Error("expected error for s3 without bucket")
	}
}
