package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is used when the client omits pageSize.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps pageSize.
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Params holds the paging values of a list request.
type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
}

// Options tune Parse per endpoint.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Parse reads pageSize and pageToken from query values. Oversized pages are clamped.
func Parse(values url.Values, opts Options) (Params, error) {
	maxSize := opts.MaxPageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxPageSize
	}
	size := opts.DefaultPageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, maxSize)

	if raw := strings.TrimSpace(values.Get("pageSize")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
		}
		if value <= 0 {
			return Params{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
		}
		size = min(value, maxSize)
	}

	params := Params{PageSize: size, PageToken: strings.TrimSpace(values.Get("pageToken"))}
	cursor, err := DecodeToken(params.PageToken)
	if err != nil {
		return Params{}, err
	}
	params.Cursor = cursor
	return params, nil
}
