package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"amp-session/internal/common/errors"
)

// NewJSONRequest returns a builder that encodes body once and sends a fresh copy on every
// attempt. A nil body sends no payload. header is copied onto each request.
func NewJSONRequest(method, url string, body interface{}, header http.Header) (RequestBuilder, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, errors.ValidationError("failed to encode request body: " + err.Error())
		}
	}

	return func(ctx context.Context) (*http.Request, error) {
		var req *http.Request
		var err error
		if payload != nil {
			req, err = http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		} else {
			req, err = http.NewRequestWithContext(ctx, method, url, nil)
		}
		if err != nil {
			return nil, err
		}

		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, nil
}
