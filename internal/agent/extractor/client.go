package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/feichai0017/certificate-processor/internal/agent/document/image"
	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/metrics"
)

const (
	DefaultEndpoint    = "https://open.bigmodel.cn/api/paas/v4/chat/completions"
	DefaultModel       = "glm-4.6v"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 60 * time.Second
)

const systemPrompt = "你是一个专业的证书信息提取系统，请从提供的证书图片中提取以下字段信息：" +
	"学生所在学院、竞赛项目、学号、学生姓名、获奖类别（国家级、省级）、" +
	"获奖等级（一等奖、二等奖、三等奖、金奖、银奖、铜奖、优秀奖）、竞赛类型（A类、B类）、" +
	"主办单位、获奖时间、指导教师。如果某些字段无法识别，请留空。" +
	"返回JSON格式，键名必须与上述字段名完全一致，不添加其他额外信息。"

const userPrompt = "请提取上述证书中的指定字段信息，返回JSON格式。"

// Config 提取服务配置
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxPoolSize int
	PoolTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Endpoint == "" {
		out.Endpoint = DefaultEndpoint
	}
	if out.Model == "" {
		out.Model = DefaultModel
	}
	if out.Temperature == 0 {
		out.Temperature = DefaultTemperature
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = DefaultMaxTokens
	}
	if out.Timeout == 0 {
		out.Timeout = DefaultTimeout
	}
	if out.MaxPoolSize <= 0 {
		out.MaxPoolSize = 4
	}
	if out.PoolTimeout == 0 {
		out.PoolTimeout = out.Timeout
	}
	return out
}

// Message 对话消息，Content 为字符串或 ContentPart 列表
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Client calls an OpenAI compatible chat-completions endpoint with the
// certificate image and parses the ten fields from the answer.
type Client struct {
	config     Config
	httpClient *http.Client
	slots      chan struct{}
	logger     logger.Logger
	metrics    *metrics.Metrics
}

func NewClient(cfg Config, log logger.Logger, m *metrics.Metrics) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		slots:   make(chan struct{}, cfg.MaxPoolSize),
		logger:  log,
		metrics: m,
	}
}

// Extract sends the image and returns the normalized field set. A reply
// that is not JSON yields the empty field set and no error; transport
// failures, timeouts and non-2xx replies return *models.ExtractionError.
func (c *Client) Extract(ctx context.Context, dataURI string) (models.ExtractedFields, error) {
	start := time.Now()

	fields, outcome, err := c.extract(ctx, dataURI)
	c.metrics.ObserveExtraction(outcome, time.Since(start))
	return fields, err
}

func (c *Client) extract(ctx context.Context, dataURI string) (models.ExtractedFields, string, error) {
	mime, payload, err := image.SplitDataURI(dataURI)
	if err != nil {
		// 兼容不带前缀的纯 base64
		mime, payload = "image/jpeg", dataURI
	}

	c.logger.Info("Calling extraction service",
		logger.String("model", c.config.Model),
		logger.Int("payloadLength", len(payload)),
	)

	release, err := c.acquire(ctx)
	if err != nil {
		return models.ExtractedFields{}, metrics.OutcomeFailed, &models.ExtractionError{Cause: "no extraction slot available", Err: err}
	}
	defer release()

	body, err := json.Marshal(c.buildRequest(mime, payload))
	if err != nil {
		return models.ExtractedFields{}, metrics.OutcomeFailed, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return models.ExtractedFields{}, metrics.OutcomeFailed, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Extraction request failed", logger.Error(err))
		return models.ExtractedFields{}, metrics.OutcomeFailed, &models.ExtractionError{Cause: transportCause(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("Extraction service returned error status",
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(snippet)),
		)
		return models.ExtractedFields{}, metrics.OutcomeFailed, &models.ExtractionError{
			Cause:      "extraction service returned " + http.StatusText(resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn("Extraction response is not valid JSON", logger.Error(err))
		return models.ExtractedFields{}, metrics.OutcomeMalformed, nil
	}
	if len(result.Choices) == 0 {
		c.logger.Warn("Extraction response has no choices", logger.String("id", result.ID))
		return models.ExtractedFields{}, metrics.OutcomeMalformed, nil
	}

	content := result.Choices[0].Message.Content
	raw, err := ParseContent(content)
	if err != nil {
		c.logger.Warn("Model answer is not a JSON object",
			logger.String("content", truncate(content, 200)),
			logger.Error(err),
		)
		return models.ExtractedFields{}, metrics.OutcomeMalformed, nil
	}

	fields := Normalize(raw)
	c.logger.Info("Extraction completed", logger.Int("filled", filled(fields)))
	return fields, metrics.OutcomeSuccess, nil
}

func (c *Client) buildRequest(mime, payload string) Request {
	return Request{
		Model: c.config.Model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "image_url", ImageURL: &ImageURL{URL: "data:" + mime + ";base64," + payload}},
					{Type: "text", Text: userPrompt},
				},
			},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}
}

// acquire bounds the number of concurrent outbound calls.
func (c *Client) acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(c.config.PoolTimeout)
	defer timer.Stop()

	select {
	case c.slots <- struct{}{}:
		return func() { <-c.slots }, nil
	case <-timer.C:
		return nil, fmt.Errorf("timeout waiting for available client")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func transportCause(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "extraction request timed out"
	case errors.Is(err, context.Canceled):
		return "extraction request cancelled"
	default:
		return "could not reach extraction service"
	}
}

// ParseContent decodes the model answer into a JSON object. A Markdown code
// fence around the object is tolerated.
func ParseContent(content string) (map[string]interface{}, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("answer is JSON null")
	}
	return raw, nil
}

// Normalize keeps exactly the ten recognised keys. Missing keys and nulls
// become "", numbers and booleans are stringified, unknown keys are dropped.
func Normalize(raw map[string]interface{}) models.ExtractedFields {
	m := make(map[string]string, len(models.FieldNames))
	for _, name := range models.FieldNames {
		m[name] = stringify(raw[name])
	}
	return models.FieldsFromMap(m)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func filled(f models.ExtractedFields) int {
	n := 0
	for _, v := range f.Map() {
		if v != "" {
			n++
		}
	}
	return n
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
