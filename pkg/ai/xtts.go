package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"speechgen/pkg/tools"
	"speechgen/pkg/wavinfo"
)

// XTTSClient talks to a model sidecar that keeps the voice cloning model
// loaded. The sidecar reads the reference clip from the shared filesystem and
// answers with wav bytes.
type XTTSClient struct {
	httpClient HTTPClient
	cfg        *Config
}

func NewXTTSClient(httpClient HTTPClient, cfg *Config) *XTTSClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &XTTSClient{
		httpClient: httpClient,
		cfg:        cfg,
	}
}

var _ Synthesizer = (*XTTSClient)(nil)

type xttsRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language"`
	SpeakerWav string `json:"speaker_wav"`
	Model      string `json:"model,omitempty"`
}

type xttsServerError struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// ServerError is a non-2xx answer from the sidecar. Error() is the sidecar's
// own message, unchanged.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

func (c *XTTSClient) Model() string {
	return c.cfg.Model
}

// Synthesize posts the request and returns the raw wav bytes.
func (c *XTTSClient) Synthesize(ctx context.Context, req *SynthesisRequest) ([]byte, error) {
	if c == nil || c.cfg == nil || strings.TrimSpace(c.cfg.URL) == "" {
		return nil, fmt.Errorf("xtts client is not configured")
	}

	// the sidecar runs in its own working directory
	speakerWav, err := filepath.Abs(req.SpeakerWavPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve speaker wav path: %w", err)
	}

	body, err := json.Marshal(&xttsRequest{
		Text:       req.Text,
		Language:   req.Language,
		SpeakerWav: speakerWav,
		Model:      c.cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal xtts request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create xtts request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.TTSErrors.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("failed to call xtts server: %w", err)
	}
	defer tools.DrainAndClose(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read xtts response: %w", err)
	}

	if resp.StatusCode >= 300 {
		metrics.TTSErrors.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    serverMessage(respBody),
		}
	}

	if len(respBody) == 0 {
		metrics.TTSErrors.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("xtts server returned empty audio")
	}

	metrics.TTSQueryTime.Observe(time.Since(start).Seconds())

	return respBody, nil
}

func serverMessage(body []byte) string {
	var apiErr xttsServerError

	if len(body) != 0 && json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}

	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}

	return "unknown error"
}

func (c *XTTSClient) SynthesizeToFile(ctx context.Context, req *SynthesisRequest, outputPath string) error {
	if err := validateRequest(req, outputPath); err != nil {
		return err
	}

	audio, err := c.Synthesize(ctx, req)
	if err != nil {
		return err
	}

	return writeWav(outputPath, audio)
}

// Health checks the sidecar health endpoint when one is configured.
func (c *XTTSClient) Health(ctx context.Context) error {
	if c.cfg.HealthURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.HealthURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("xtts health check failed: %w", err)
	}
	defer tools.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("xtts health check failed with status: %s", resp.Status)
	}

	return nil
}

// writeWav creates outputPath exclusively, so an existing artifact is never
// overwritten, and keeps the file only if it parses as a wav.
func writeWav(outputPath string, audio []byte) (err error) {
	f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tools.RemoveIfExists(outputPath)
		}
	}()

	if _, err = f.Write(audio); err != nil {
		f.Close()
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close audio file: %w", err)
	}

	if _, err = wavinfo.Inspect(outputPath); err != nil {
		return fmt.Errorf("engine produced unplayable audio: %w", err)
	}

	return nil
}
