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

// inferenceName identifies the inference provider in fingerprints and logs.
const inferenceName = "inference"

// Inference endpoint path layout: {baseURL}/models/{model}.
const inferenceModelsPath = "/models/"

// Inference calls a hosted model-inference endpoint. Such endpoints spin
// models up on demand, so a 503 with a loading notice is an expected
// transient condition rather than an outage.
type Inference struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// inferenceRequest is the JSON payload for an inference call.
type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

// inferenceErrorResponse is the error body returned while a model is loading
// or a request is rejected.
type inferenceErrorResponse struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

// NewInference creates an inference provider client bound to one model.
func NewInference(baseURL, apiKey, model string, timeout time.Duration) *Inference {
	return &Inference{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name identifies this provider.
func (p *Inference) Name() string {
	return inferenceName
}

// ListVoices returns the built-in voice list; inference endpoints expose a
// single voice per model and no catalogue API.
func (p *Inference) ListVoices(_ context.Context) ([]core.Voice, error) {
	return builtinVoices(), nil
}

// Synthesize performs one text-to-audio inference call.
func (p *Inference) Synthesize(
	ctx context.Context,
	text string,
	_ core.VoiceSelector,
	_ core.AudioOptions,
) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	requestBody, err := json.Marshal(inferenceRequest{Inputs: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inference request: %w", err)
	}

	url := p.baseURL + inferenceModelsPath + p.model

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)

	if p.apiKey != "" {
		httpReq.Header.Set(headerAuthorization, bearerPrefix+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to inference endpoint at %s: %w", p.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.classifyError(resp)
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

// classifyError maps inference endpoint failures onto the transient/fatal
// taxonomy. A 503 carrying an estimated_time means the model is still
// loading; a 429 is a rate limit. Both are transient.
func (p *Inference) classifyError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp inferenceErrorResponse

	_ = json.Unmarshal(body, &errorResp)

	detail := errorResp.Error
	if detail == "" {
		detail = string(body)
	}

	switch resp.StatusCode {
	case http.StatusServiceUnavailable:
		return &TransientError{
			Reason:     fmt.Sprintf("model loading: %s", detail),
			RetryAfter: time.Duration(errorResp.EstimatedTime * float64(time.Second)),
		}
	case http.StatusTooManyRequests:
		return &TransientError{
			Reason:     fmt.Sprintf("rate limited: %s", detail),
			RetryAfter: 0,
		}
	default:
		return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, detail)
	}
}
