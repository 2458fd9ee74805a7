package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"battery_project/internal/config"
	"battery_project/internal/domain"
	"battery_project/pkg/logger"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Extractor is the external OCR/LLM collaborator: one image in, one
// extraction envelope out. Timeout behavior is the collaborator's own;
// callers treat a hung or failed call as an opaque per-job error.
type Extractor interface {
	Extract(ctx context.Context, job domain.ImageJob) (domain.ExtractionResult, error)
}

// InfoClient generates advisory chart metadata. Failures are non-critical
// and must never block the data pipeline.
type InfoClient interface {
	ChartInfo(ctx context.Context, metrics []string, rangeLabel, insights string) (domain.ChartInfo, error)
}

const extractPrompt = `You are reading a photo of a battery monitor display.
Return ONLY a JSON object of this exact shape:
{"success": true, "batteryId": "<serial or model number visible on the display>",
 "extractedData": "<JSON string of every numeric reading: state of charge, voltage, current, capacity, temperature, and anything else shown>",
 "timestamp": <epoch milliseconds if a clock is visible, else 0>}
If the image is not a battery monitor display, return {"success": false, "error": "<reason>"}.`

const infoPrompt = `Write a short title and one-sentence description for a battery trend chart.
Metrics shown: %s. Time range: %s. Insights: %s.
Return ONLY JSON: {"title": "...", "description": "..."}`

// LLMClient calls an OpenAI-compatible vision model for both extraction and
// chart-info generation.
type LLMClient struct {
	llm *openai.LLM
}

// NewLLMClient builds the client from config. Base URL is optional (empty
// uses the provider default).
func NewLLMClient(cfg *config.Config) (*LLMClient, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.LLMModel),
		openai.WithToken(cfg.LLMAPIKey),
	}
	if cfg.LLMBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.LLMBaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return &LLMClient{llm: llm}, nil
}

// Extract sends the image to the vision model and decodes the extraction
// envelope. A malformed envelope is an extraction failure; a well-formed
// envelope whose extractedData is broken JSON is left for the data-point
// builder to reject, since that is a distinct error class.
func (c *LLMClient) Extract(ctx context.Context, job domain.ImageJob) (domain.ExtractionResult, error) {
	mime := job.MIME
	if mime == "" {
		mime = "image/jpeg"
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(extractPrompt),
				llms.BinaryPart(mime, job.Payload),
			},
		},
	}

	resp, err := c.llm.GenerateContent(ctx, content, llms.WithJSONMode())
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("extraction call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ExtractionResult{}, fmt.Errorf("extraction call returned no choices")
	}

	var res domain.ExtractionResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Content), &res); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("malformed extraction envelope: %w", err)
	}
	if res.Success && res.BatteryID == "" {
		return domain.ExtractionResult{}, fmt.Errorf("extraction returned no battery id")
	}
	if res.Timestamp <= 0 {
		// No clock on the display: the upload moment is the reading time.
		res.Timestamp = time.Now().UnixMilli()
	}
	return res, nil
}

// ChartInfo asks the model for title/description metadata.
func (c *LLMClient) ChartInfo(ctx context.Context, metrics []string, rangeLabel, insights string) (domain.ChartInfo, error) {
	prompt := fmt.Sprintf(infoPrompt, strings.Join(metrics, ", "), rangeLabel, insights)

	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithJSONMode())
	if err != nil {
		return domain.ChartInfo{}, fmt.Errorf("chart info call failed: %w", err)
	}

	var info domain.ChartInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return domain.ChartInfo{}, fmt.Errorf("malformed chart info: %w", err)
	}
	if info.Title == "" {
		logger.Debug("Chart info response had no title")
	}
	return info, nil
}
