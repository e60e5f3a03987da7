package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient 通过 HTTP 调用 OpenAI 的 chat 与 image 接口。
// 不重试：协作方失败直接上抛，由编排器决定整次运行失败。
type OpenAIClient struct {
	baseURL      string
	apiKey       string
	organization string
	textModel    string
	imageModel   string
	httpClient   *http.Client
}

// Options 配置 OpenAIClient 的可选项。
type Options struct {
	BaseURL      string
	Organization string
	TextModel    string
	ImageModel   string
	Timeout      time.Duration
}

// NewOpenAIClient 构造客户端，空白选项取默认值。
func NewOpenAIClient(apiKey string, opts Options) *OpenAIClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	textModel := opts.TextModel
	if textModel == "" {
		textModel = "gpt-4o"
	}
	imageModel := opts.ImageModel
	if imageModel == "" {
		imageModel = "dall-e-3"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		baseURL:      baseURL,
		apiKey:       apiKey,
		organization: opts.Organization,
		textModel:    textModel,
		imageModel:   imageModel,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// CollaboratorError 表示协作方返回了非 2xx 或不可用的响应。
type CollaboratorError struct {
	Service    string
	StatusCode int
	Detail     string
}

func (e *CollaboratorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s collaborator status %d: %s", e.Service, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s collaborator: %s", e.Service, e.Detail)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateText 调用 chat completions，返回首个 choice 的内容。
func (c *OpenAIClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body := chatRequest{
		Model: c.textModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   2000,
		Temperature: 0.8,
	}

	var decoded chatResponse
	if err := c.post(ctx, "/v1/chat/completions", "text", body, &decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 {
		return "", &CollaboratorError{Service: "text", Detail: "response carried no choices"}
	}
	return decoded.Choices[0].Message.Content, nil
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	N      int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage 调用图像生成接口，n 固定为 1，返回图片 URL。
// 提示词长度上限由调用方在发起网络请求前校验（见 ValidatePromptLength）。
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string, size string) (string, error) {
	body := imageRequest{
		Model:  c.imageModel,
		Prompt: prompt,
		Size:   size,
		N:      1,
	}

	var decoded imageResponse
	if err := c.post(ctx, "/v1/images/generations", "image", body, &decoded); err != nil {
		return "", err
	}
	if len(decoded.Data) == 0 || strings.TrimSpace(decoded.Data[0].URL) == "" {
		return "", &CollaboratorError{Service: "image", Detail: "response carried no image url"}
	}
	return decoded.Data[0].URL, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, service string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CollaboratorError{Service: service, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return &CollaboratorError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(detail)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &CollaboratorError{Service: service, Detail: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
