package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/synthesis-service/internal/core"
)

// API endpoints and paths.
const (
	apiSynthesize = "/v1/synthesize"
	apiVoices     = "/v1/voices"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	contentTypeWAV      = "audio/wav"
	bearerPrefix        = "Bearer "
)

// Error formats.
const (
	errFmtServiceNonOKStatus = "synthesis service returned non-OK status: %s, body: %s"
	errFmtUnexpectedType     = "unexpected content type: expected %s, got %s"
)

// cloudName identifies the cloud provider in fingerprints and logs.
const cloudName = "cloud"

// Cloud calls a managed speech-synthesis HTTP API.
type Cloud struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// cloudRequest is the JSON payload for a synthesis call.
type cloudRequest struct {
	Text  string             `json:"text"`
	Voice core.VoiceSelector `json:"voice"`
	Audio core.AudioOptions  `json:"audio"`
}

// cloudErrorResponse is the structured error body returned by the API.
type cloudErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// cloudVoicesResponse is the JSON body of the voice catalogue endpoint.
type cloudVoicesResponse struct {
	Voices []core.Voice `json:"voices"`
}

// NewCloud creates a cloud provider client. The baseURL should include the
// protocol and port; the timeout bounds every HTTP call.
func NewCloud(baseURL, apiKey string, timeout time.Duration) *Cloud {
	return &Cloud{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name identifies this provider.
func (c *Cloud) Name() string {
	return cloudName
}

// ListVoices fetches the remote voice catalogue, falling back to the built-in
// list when the endpoint is unreachable or returns garbage.
func (c *Cloud) ListVoices(ctx context.Context) ([]core.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiVoices, http.NoBody)
	if err != nil {
		return builtinVoices(), nil
	}

	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return builtinVoices(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return builtinVoices(), nil
	}

	var body cloudVoicesResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if decodeErr != nil || len(body.Voices) == 0 {
		return builtinVoices(), nil
	}

	return body.Voices, nil
}

// Synthesize performs one text-to-audio call against the API.
func (c *Cloud) Synthesize(
	ctx context.Context,
	text string,
	voice core.VoiceSelector,
	opts core.AudioOptions,
) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	requestBody, err := json.Marshal(cloudRequest{
		Text:  text,
		Voice: voice,
		Audio: opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiSynthesize,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to synthesis service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyError(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf(errFmtUnexpectedType, contentTypeWAV, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrNoAudioContent
	}

	return audioData, nil
}

func (c *Cloud) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set(headerAuthorization, bearerPrefix+c.apiKey)
	}
}

// classifyError turns a non-OK response into a transient or fatal error.
// Rate limiting and temporary unavailability are the transient conditions;
// everything else, including auth failures and malformed requests, is fatal.
func (c *Cloud) classifyError(resp *http.Response) error {
	detail := readErrorDetail(resp)

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return &TransientError{
			Reason:     fmt.Sprintf("%s: %s", resp.Status, detail),
			RetryAfter: 0,
		}
	default:
		return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, detail)
	}
}

// readErrorDetail decodes the structured error body, falling back to the raw
// bytes so diagnostics are never lost.
func readErrorDetail(resp *http.Response) string {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return resp.Status
	}

	var errorResp cloudErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		if errorResp.ErrorCode != "" {
			return fmt.Sprintf("%s (code: %s)", errorResp.Detail, errorResp.ErrorCode)
		}

		return errorResp.Detail
	}

	return string(body)
}
