package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/templatemart/api/internal/platform/requestctx"
	pstorage "github.com/templatemart/api/internal/platform/storage"
	"github.com/templatemart/api/internal/repositories"
)

var (
	// ErrAssetInvalidInput indicates the caller provided an invalid argument.
	ErrAssetInvalidInput = errors.New("asset: invalid input")
	// ErrAssetNotFound indicates the template does not exist or is not published.
	ErrAssetNotFound = errors.New("asset: not found")
	// ErrAssetUnavailable indicates the template has no downloadable bundle.
	ErrAssetUnavailable = errors.New("asset: unavailable")
	// ErrAssetForbidden indicates the bundle lives outside the assets bucket.
	ErrAssetForbidden = errors.New("asset: forbidden")
)

// URLSigner issues signed download URLs.
type URLSigner interface {
	SignedDownloadURL(ctx context.Context, bucket, object string, opts pstorage.DownloadOptions) (pstorage.SignedURL, error)
}

// AssetServiceDeps wires dependencies for the asset service implementation.
type AssetServiceDeps struct {
	Templates repositories.TemplateRepository
	Signer    URLSigner
	Bucket    string
	TTL       time.Duration
}

type assetService struct {
	templates repositories.TemplateRepository
	signer    URLSigner
	bucket    string
	ttl       time.Duration
}

var _ AssetService = (*assetService)(nil)

// NewAssetService constructs the asset service. Without a signer only plain http(s)
// download links can be served.
func NewAssetService(deps AssetServiceDeps) (AssetService, error) {
	if deps.Templates == nil {
		return nil, errors.New("asset service: template repository is required")
	}
	return &assetService{
		templates: deps.Templates,
		signer:    deps.Signer,
		bucket:    strings.TrimSpace(deps.Bucket),
		ttl:       deps.TTL,
	}, nil
}

func (s *assetService) TemplateDownload(ctx context.Context, templateID string) (Download, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return Download{}, fmt.Errorf("%w: template id is required", ErrAssetInvalidInput)
	}
	template, err := s.templates.Get(ctx, templateID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Download{}, fmt.Errorf("%w: template %s", ErrAssetNotFound, templateID)
		}
		return Download{}, fmt.Errorf("asset service: get template: %w", err)
	}
	if !template.Published() {
		return Download{}, fmt.Errorf("%w: template %s", ErrAssetNotFound, templateID)
	}

	link := strings.TrimSpace(template.DownloadURL)
	if link == "" {
		return Download{}, fmt.Errorf("%w: template %s has no download", ErrAssetUnavailable, templateID)
	}
	bucket, object, err := pstorage.ParseObjectURL(link)
	if errors.Is(err, pstorage.ErrNotObjectURL) {
		if strings.HasPrefix(link, "gs://") {
			return Download{}, fmt.Errorf("%w: malformed object url", ErrAssetUnavailable)
		}
		return Download{URL: link}, nil
	}
	if s.bucket != "" && bucket != s.bucket {
		return Download{}, fmt.Errorf("%w: bucket %s", ErrAssetForbidden, bucket)
	}
	if s.signer == nil {
		return Download{}, fmt.Errorf("%w: signing is not configured", ErrAssetUnavailable)
	}

	signed, err := s.signer.SignedDownloadURL(ctx, bucket, object, pstorage.DownloadOptions{
		ExpiresIn: s.ttl,
		FileName:  path.Base(object),
	})
	if err != nil {
		return Download{}, fmt.Errorf("asset service: sign download: %w", err)
	}
	requestctx.Logger(ctx).Debug("asset download issued",
		zap.String("templateID", templateID),
		zap.String("object", object),
		zap.Time("expiresAt", signed.ExpiresAt),
	)
	expires := signed.ExpiresAt.UTC()
	return Download{URL: signed.URL, Signed: true, ExpiresAt: &expires}, nil
}
