package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/infrastructure/resilience"
)

const (
	DefaultTimeout = 60 * time.Second

	audioFieldName     = "audioFile"
	modelSizeFieldName = "whisperModelSize"

	unknownProcessingError = "Unknown processing error"
)

// RequestObserver records one backend request.
type RequestObserver interface {
	ObserveRequest(operation, outcome string, duration time.Duration)
}

type Options struct {
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	Executor       *resilience.Executor
	Metrics        RequestObserver
	HTTPClient     *http.Client
}

// Client talks to the media-analysis backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
	metrics    RequestObserver
}

func New(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		executor:   opts.Executor,
		limiter:    limiter,
		metrics:    opts.Metrics,
	}
}

// StartJob uploads the audio as multipart form data and returns the job id
// assigned by the backend. The body is streamed, so audio is read exactly once.
func (c *Client) StartJob(ctx context.Context, filename string, audio io.Reader, modelSize string) (string, error) {
	if audio == nil {
		return "", domain.NewError(domain.ErrValidation, "audio stream is required", nil)
	}

	resp, err := c.send(ctx, "start_job", func(reqCtx context.Context) (*http.Request, error) {
		pr, pw := io.Pipe()
		form := multipart.NewWriter(pw)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/process_audio", pr)
		if err != nil {
			_ = pr.Close()
			return nil, err
		}
		req.Header.Set("Content-Type", form.FormDataContentType())

		go func() {
			pw.CloseWithError(writeUpload(form, filename, audio, modelSize))
		}()
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", domain.NewError(domain.ErrProtocol, "start job response is not valid JSON", err)
	}
	return strings.TrimSpace(out.JobID), nil
}

func writeUpload(form *multipart.Writer, filename string, audio io.Reader, modelSize string) error {
	part, err := form.CreateFormFile(audioFieldName, filename)
	if err != nil {
		return fmt.Errorf("create audio part: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}
	if modelSize != "" {
		if err := form.WriteField(modelSizeFieldName, modelSize); err != nil {
			return fmt.Errorf("write model size: %w", err)
		}
	}
	return form.Close()
}

// GetStatus returns the job status. HTTP 404 is reported as not_found rather
// than as an error.
func (c *Client) GetStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	resp, err := c.send(ctx, "get_status", c.get("/get_status/"+url.PathEscape(jobID)))
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
			return domain.StatusNotFound, nil
		}
		return "", err
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", domain.NewError(domain.ErrProtocol, "status response is not valid JSON", err)
	}
	return domain.JobStatus(strings.TrimSpace(out.Status)), nil
}

// FetchFinal reads the final result of a job that reached a terminal status.
func (c *Client) FetchFinal(ctx context.Context, jobID string) (domain.FinalResult, error) {
	resp, err := c.send(ctx, "get_result", c.get("/get_result/"+url.PathEscape(jobID)))
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode() > 0 {
			return domain.FinalResult{}, domain.NewError(domain.ErrProtocol, reqErr.Error(), err)
		}
		return domain.FinalResult{}, err
	}

	var out struct {
		Status domain.JobStatus `json:"status"`
		Data   json.RawMessage  `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return domain.FinalResult{}, domain.NewError(domain.ErrMalformedPayload, "final result is not valid JSON", err)
	}

	switch out.Status {
	case domain.StatusCompleted:
		if isAbsent(out.Data) {
			return domain.FinalResult{}, domain.NewError(domain.ErrProtocol, "completed result is missing data", nil)
		}
		var payload domain.ResultPayload
		if err := json.Unmarshal(out.Data, &payload); err != nil {
			return domain.FinalResult{}, domain.NewError(domain.ErrMalformedPayload, "result payload is not a JSON object", err)
		}
		return domain.FinalResult{Status: domain.StatusCompleted, Payload: &payload}, nil
	case domain.StatusFailed:
		return domain.FinalResult{Status: domain.StatusFailed, FailureDetail: failureMessage(out.Data)}, nil
	default:
		return domain.FinalResult{Status: out.Status}, nil
	}
}

// FetchReport loads a finished report by job id. 202 means the job is still
// running.
func (c *Client) FetchReport(ctx context.Context, jobID string) (*domain.ResultPayload, error) {
	resp, err := c.send(ctx, "get_report_data", c.get("/api/get_report_data/"+url.PathEscape(jobID)))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusAccepted {
		var pending struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		_ = json.Unmarshal(resp.Body, &pending)
		msg := strings.TrimSpace(pending.Error)
		if msg == "" {
			msg = "report is not ready yet"
		}
		if pending.Status != "" {
			msg = fmt.Sprintf("%s (status: %s)", msg, pending.Status)
		}
		return nil, domain.NewError(domain.ErrResult, msg, nil)
	}

	var payload domain.ResultPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, domain.NewError(domain.ErrMalformedPayload, "report payload is not a JSON object", err)
	}
	return &payload, nil
}

// Regenerate submits a custom analysis prompt for an existing job. Any 2xx
// response is success.
func (c *Client) Regenerate(ctx context.Context, jobID, prompt string) error {
	body, err := json.Marshal(map[string]string{"custom_prompt": prompt})
	if err != nil {
		return fmt.Errorf("marshal regenerate request: %w", err)
	}
	_, err = c.send(ctx, "regenerate", func(reqCtx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/api/regenerate/"+url.PathEscape(jobID), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	return err
}

func (c *Client) get(path string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	}
}

func failureMessage(data json.RawMessage) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if isAbsent(data) || json.Unmarshal(data, &parsed) != nil {
		return unknownProcessingError
	}
	if msg := strings.TrimSpace(parsed.Error); msg != "" {
		return msg
	}
	return unknownProcessingError
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
