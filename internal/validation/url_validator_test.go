package validation

import (
	"errors"
	"testing"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
	errpkg "github.com/veranemoloko/bulk-downloader/internal/errors"
)

func validTask() domain.DownloadTask {
	return domain.DownloadTask{
		URL:         "https://example.com/a.pdf",
		Destination: "/tmp/a.pdf",
		Source:      "docs",
		Name:        "a.pdf",
	}
}

func TestValidateTask(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*domain.DownloadTask)
		blockPrivate bool
		wantErr      bool
	}{
		{
			name:    "valid task",
			mutate:  func(*domain.DownloadTask) {},
			wantErr: false,
		},
		{
			name:    "invalid scheme",
			mutate:  func(t *domain.DownloadTask) { t.URL = "ftp://example.com/a.pdf" },
			wantErr: true,
		},
		{
			name:    "missing host",
			mutate:  func(t *domain.DownloadTask) { t.URL = "https:///path" },
			wantErr: true,
		},
		{
			name:    "missing destination",
			mutate:  func(t *domain.DownloadTask) { t.Destination = "" },
			wantErr: true,
		},
		{
			name:    "missing name",
			mutate:  func(t *domain.DownloadTask) { t.Name = "" },
			wantErr: true,
		},
		{
			name:    "unknown hint",
			mutate:  func(t *domain.DownloadTask) { t.Hint = "video" },
			wantErr: true,
		},
		{
			name:    "text hint",
			mutate:  func(t *domain.DownloadTask) { t.Hint = domain.ContentText },
			wantErr: false,
		},
		{
			name:    "localhost allowed by default",
			mutate:  func(t *domain.DownloadTask) { t.URL = "http://localhost:8080/a" },
			wantErr: false,
		},
		{
			name:         "localhost blocked",
			mutate:       func(t *domain.DownloadTask) { t.URL = "http://localhost:8080/a" },
			blockPrivate: true,
			wantErr:      true,
		},
		{
			name:         "private IP blocked",
			mutate:       func(t *domain.DownloadTask) { t.URL = "http://192.168.1.10/a" },
			blockPrivate: true,
			wantErr:      true,
		},
		{
			name:         "loopback IP blocked",
			mutate:       func(t *domain.DownloadTask) { t.URL = "https://127.0.0.1/a" },
			blockPrivate: true,
			wantErr:      true,
		},
		{
			name:         "public host with blocking",
			mutate:       func(*domain.DownloadTask) {},
			blockPrivate: true,
			wantErr:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask()
			tt.mutate(&task)

			err := New(tt.blockPrivate).ValidateTask(task)
			if tt.wantErr && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if err != nil && !errors.Is(err, errpkg.ErrInvalidTask) {
				t.Errorf("expected ErrInvalidTask, got %v", err)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	v := New(false)
	if err := v.ValidateURL("https://example.com"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.ValidateURL(""); err == nil {
		t.Errorf("expected error for empty URL")
	}
}
