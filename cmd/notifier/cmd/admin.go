package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// adminGet fetches path from the running notifier and decodes the JSON body
// into out. The raw body is returned as well for --json output.
func adminGet(ctx context.Context, path string, query url.Values, out any) ([]byte, error) {
	return adminDo(ctx, http.MethodGet, path, query, out)
}

func adminPost(ctx context.Context, path string, out any) ([]byte, error) {
	return adminDo(ctx, http.MethodPost, path, nil, out)
}

func adminDo(ctx context.Context, method, path string, query url.Values, out any) ([]byte, error) {
	u := strings.TrimRight(serverURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return body, fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return body, fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return body, fmt.Errorf("decode response: %w", err)
		}
	}
	return body, nil
}

func printJSON(w io.Writer, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
