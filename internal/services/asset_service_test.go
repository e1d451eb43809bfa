package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/templatemart/api/internal/domain"
	pstorage "github.com/templatemart/api/internal/platform/storage"
)

type stubSigner struct {
	bucket, object string
	opts           pstorage.DownloadOptions
	err            error
}

func (s *stubSigner) SignedDownloadURL(_ context.Context, bucket, object string, opts pstorage.DownloadOptions) (pstorage.SignedURL, error) {
	if s.err != nil {
		return pstorage.SignedURL{}, s.err
	}
	s.bucket, s.object, s.opts = bucket, object, opts
	return pstorage.SignedURL{URL: "https://storage.googleapis.com/" + bucket + "/" + object + "?sig", ExpiresAt: testNow.Add(opts.ExpiresIn)}, nil
}

func TestAssetTemplateDownload(t *testing.T) {
	reg := seededRegistry(t)
	ctx := context.Background()
	if err := reg.Templates().Insert(ctx, domain.Template{ID: "http-bundle", Title: "Http", Status: domain.TemplateStatusPublished, DownloadURL: "https://cdn.example.com/b.zip"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := reg.Templates().Insert(ctx, domain.Template{ID: "foreign", Title: "Foreign", Status: domain.TemplateStatusPublished, DownloadURL: "gs://other-bucket/x.zip"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	signer := &stubSigner{}
	svc, err := NewAssetService(AssetServiceDeps{
		Templates: reg.Templates(),
		Signer:    signer,
		Bucket:    "templatemart-assets",
		TTL:       10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewAssetService: %v", err)
	}

	dl, err := svc.TemplateDownload(ctx, "saas-landing")
	if err != nil {
		t.Fatalf("TemplateDownload: %v", err)
	}
	if !dl.Signed || dl.ExpiresAt == nil || !dl.ExpiresAt.Equal(testNow.Add(10*time.Minute)) {
		t.Fatalf("unexpected download %+v", dl)
	}
	if signer.object != "templates/saas-landing.zip" || signer.opts.FileName != "saas-landing.zip" {
		t.Fatalf("unexpected signing request %+v", signer)
	}

	plain, err := svc.TemplateDownload(ctx, "http-bundle")
	if err != nil || plain.Signed || plain.URL != "https://cdn.example.com/b.zip" {
		t.Fatalf("expected passthrough url, got %+v (%v)", plain, err)
	}

	cases := map[string]error{
		"foreign":        ErrAssetForbidden,
		"minimal-blog":   ErrAssetUnavailable,
		"app-launch":     ErrAssetNotFound,
		"does-not-exist": ErrAssetNotFound,
		" ":              ErrAssetInvalidInput,
	}
	for id, want := range cases {
		if _, err := svc.TemplateDownload(ctx, id); !errors.Is(err, want) {
			t.Fatalf("%q: expected %v, got %v", id, want, err)
		}
	}
}

func TestAssetDownloadWithoutSigner(t *testing.T) {
	reg := seededRegistry(t)
	svc, err := NewAssetService(AssetServiceDeps{Templates: reg.Templates()})
	if err != nil {
		t.Fatalf("NewAssetService: %v", err)
	}
	if _, err := svc.TemplateDownload(context.Background(), "saas-landing"); !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("expected unavailable without signer, got %v", err)
	}
}
