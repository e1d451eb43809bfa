package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultDownloadExpiry = 5 * time.Minute
	maxDownloadExpiry     = 15 * time.Minute
)

var (
	errNoSigner      = errors.New("storage: signer is required")
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errExpiryTooLong = errors.New("storage: expiry exceeds permitted maximum")

	// ErrNotObjectURL is returned by ParseObjectURL for anything but gs://bucket/object.
	ErrNotObjectURL = errors.New("storage: not a gs:// object url")
)

// Client generates V4 signed download URLs.
type Client struct {
	signer Signer
	now    func() time.Time
}

// ClientOption customises the Client.
type ClientOption func(*Client)

// WithClock injects a clock.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a signing client.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	c := &Client{signer: signer, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// DownloadOptions tune the signed download.
type DownloadOptions struct {
	ExpiresIn time.Duration
	// FileName, when set, makes browsers save the object under this name.
	FileName string
}

// SignedURL describes a generated URL.
type SignedURL struct {
	URL       string
	ExpiresAt time.Time
}

// SignedDownloadURL signs a GET URL for bucket/object.
func (c *Client) SignedDownloadURL(ctx context.Context, bucket, object string, opts DownloadOptions) (SignedURL, error) {
	if c == nil {
		return SignedURL{}, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return SignedURL{}, errInvalidBucket
	}
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return SignedURL{}, errInvalidObject
	}

	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultDownloadExpiry
	}
	if expiry > maxDownloadExpiry {
		return SignedURL{}, errExpiryTooLong
	}
	expiresAt := c.now().Add(expiry)

	signOpts := &storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	}
	if name := strings.TrimSpace(opts.FileName); name != "" {
		signOpts.QueryParameters = url.Values{
			"response-content-disposition": {fmt.Sprintf("attachment; filename=%q", name)},
		}
	}

	signed, err := storage.SignedURL(bucket, object, signOpts)
	if err != nil {
		return SignedURL{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return SignedURL{URL: signed, ExpiresAt: expiresAt}, nil
}

// ParseObjectURL splits gs://bucket/path/to/object.
func ParseObjectURL(raw string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), "gs://")
	if !ok {
		return "", "", ErrNotObjectURL
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || strings.Trim(object, "/") == "" {
		return "", "", ErrNotObjectURL
	}
	return bucket, object, nil
}

// ObjectURL formats the gs:// form of bucket/object.
func ObjectURL(bucket, object string) string {
	return "gs://" + strings.TrimSpace(bucket) + "/" + strings.TrimLeft(strings.TrimSpace(object), "/")
}
