package graphbuilder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/YArzumanyan/data-factory/pkg/errors"
	"github.com/YArzumanyan/data-factory/pkg/httputil"
)

// metadataFetchTimeout bounds a single pipeline metadata request.
const metadataFetchTimeout = 15 * time.Second

// MetadataClient retrieves a pipeline's RDF/Turtle description from the
// metadata store.
type MetadataClient struct {
	http *http.Client
	base string
}

// NewMetadataClient creates a client against the given metadata store base
// URL.
func NewMetadataClient(base string) *MetadataClient {
	return &MetadataClient{
		http: httputil.NewClient(metadataFetchTimeout),
		base: base,
	}
}

// FetchPipeline retrieves the Turtle document describing the pipeline with
// the given UUID. Returns a *errors.Error with code CodeFetch on any
// non-2xx response or network failure.
func (c *MetadataClient) FetchPipeline(ctx context.Context, uuid string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataFetchTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s", trimTrailingSlash(c.base), uuid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(errors.CodeFetch, err, "building request for pipeline %s", uuid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.CodeFetch, err, "fetching pipeline %s", uuid)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.New(errors.CodeFetch, "pipeline %s: unexpected status %d", uuid, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(errors.CodeFetch, err, "reading pipeline %s body", uuid)
	}
	return string(body), nil
}

func trimTrailingSlash(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}
