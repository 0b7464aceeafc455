package directory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/marketplace_console/internal/httputil"
)

// maxResponseBytes bounds directory responses.
const maxResponseBytes = 4 << 20

// ErrMalformedResponse is returned when the directory body carries no data array.
var ErrMalformedResponse = errors.New("directory response has no data array")

// HTTPResolver calls the user directory: POST {"emails": [...]} answered by
// {"data": [{"email": ..., "name": ...}]}.
type HTTPResolver struct {
	client *httputil.Client
}

// NewHTTPResolver constructs a resolver for endpoint. A supplied client must
// already target endpoint; nil builds a default one.
func NewHTTPResolver(endpoint, apiKey string, client *httputil.Client) (*HTTPResolver, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("directory endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse directory endpoint %q: invalid URL", endpoint)
	}
	if client == nil {
		client = httputil.NewClient(httputil.ClientConfig{BaseURL: parsed.String(), APIKey: apiKey})
	}
	return &HTTPResolver{client: client}, nil
}

func (r *HTTPResolver) Resolve(ctx context.Context, emails []string) (map[string]string, error) {
	resp, err := r.client.Post(ctx, "", map[string][]string{"emails": emails})
	if err != nil {
		return nil, fmt.Errorf("directory request: %w", err)
	}
	body, err := httputil.ReadResponse(resp, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("directory response: %w", err)
	}

	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, ErrMalformedResponse
	}

	names := make(map[string]string, len(emails))
	data.ForEach(func(_, entry gjson.Result) bool {
		email := entry.Get("email").String()
		name := strings.TrimSpace(entry.Get("name").String())
		if email != "" && name != "" {
			names[email] = name
		}
		return true
	})
	return names, nil
}
