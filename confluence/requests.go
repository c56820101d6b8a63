package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Get fetches a surface-relative path and decodes the JSON answer into out (which may be nil).
func (api *API) Get(ctx context.Context, surface Surface, path string, out interface{}) error {
	ep, err := api.endpoint(surface, path)
	if err != nil {
		return err
	}

	body, err := api.request(ctx, http.MethodGet, surface, path, ep, nil, "")
	if err != nil {
		return err
	}

	return decode(body, out)
}

// Post sends in as JSON and decodes the JSON answer into out (which may be nil).
func (api *API) Post(ctx context.Context, surface Surface, path string, in, out interface{}) error {
	return api.send(ctx, http.MethodPost, surface, path, in, out)
}

// Put sends in as JSON and decodes the JSON answer into out (which may be nil).
func (api *API) Put(ctx context.Context, surface Surface, path string, in, out interface{}) error {
	return api.send(ctx, http.MethodPut, surface, path, in, out)
}

func (api *API) send(ctx context.Context, method string, surface Surface, path string, in, out interface{}) error {
	ep, err := api.endpoint(surface, path)
	if err != nil {
		return err
	}

	var payload io.Reader
	contentType := ""
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("confluence: couldn't encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	body, err := api.request(ctx, method, surface, path, ep, payload, contentType)
	if err != nil {
		return err
	}

	return decode(body, out)
}

func decode(body []byte, out interface{}) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("confluence: couldn't parse json response: %w", err)
	}
	return nil
}

// Download fetches an attachment's binary content through its _links.download.
func (api *API) Download(ctx context.Context, link string) ([]byte, error) {
	ep, err := api.downloadEndpoint(link)
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't resolve download link: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't instantiate http request: %w", err)
	}
	api.authorise(req)

	return api.do(req, V1, ep.Path)
}

// request implements the basic request function: auth, accept header, status check.
func (api *API) request(ctx context.Context, method string, surface Surface, path string, url *url.URL, payload io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't instantiate http request: %w", err)
	}

	req.Header.Add("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	api.authorise(req)

	return api.do(req, surface, path)
}

func (api *API) authorise(req *http.Request) {
	// if user & token are not set, do not add authorization header
	if api.username != "" && api.token != "" {
		req.SetBasicAuth(api.username, api.token)
	} else if api.token != "" {
		req.Header.Set("Authorization", "Bearer "+api.token)
	}
}

func (api *API) do(req *http.Request, surface Surface, path string) ([]byte, error) {
	logger.Tracef("%s %s", req.Method, req.URL)

	response, err := api.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't perform http request: %w", err)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		response.Body.Close()
		return nil, fmt.Errorf("confluence: couldn't read http response body: %w", err)
	}

	if err := response.Body.Close(); err != nil {
		return nil, fmt.Errorf("confluence: couldn't close response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return body, nil
	}

	return nil, &APIError{
		Method:     req.Method,
		Surface:    surface,
		Path:       path,
		StatusCode: response.StatusCode,
		Status:     response.Status,
		Body:       truncate(body, errorBodyLimit),
	}
}
