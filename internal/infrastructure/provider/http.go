package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lumapix/payments-service/internal/domain"
)

// sendJSON posts/gets a JSON body against a provider API and decodes the
// response, converting non-2xx answers into *Error.
func sendJSON[Req any, Resp any](ctx context.Context, client *http.Client, p domain.Provider, method, url string, reqBody *Req, headers map[string]string) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	return doRequest[Resp](client, p, httpReq)
}

// sendForm posts url-encoded form data (the shape Stripe's API expects).
func sendForm[Resp any](ctx context.Context, client *http.Client, p domain.Provider, url string, form url.Values, headers map[string]string) (*Resp, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	return doRequest[Resp](client, p, httpReq)
}

func doRequest[Resp any](client *http.Client, p domain.Provider, httpReq *http.Request) (*Resp, error) {
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
			Message string `json:"message"`
			Status  string `json:"status"`
		}
		if err := json.Unmarshal(body, &errResp); err != nil {
			return nil, &Error{
				Provider:   p,
				Code:       "unparseable_error",
				Message:    string(body),
				StatusCode: resp.StatusCode,
			}
		}
		message := errResp.Error.Message
		if message == "" {
			message = errResp.Message
		}
		code := errResp.Error.Code
		if code == "" {
			code = "api_error"
		}
		return nil, &Error{
			Provider:   p,
			Code:       code,
			Message:    message,
			StatusCode: resp.StatusCode,
		}
	}

	var decoded Resp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &decoded, nil
}
