package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/venuerec/core"
)

// HTTPTextEncoder 是句向量编码服务的 HTTP 客户端，实现 core.TextEncoder。
//
// 协议（兼容 text-embeddings-inference 与常见 sentence-transformers 封装）：
//   - 请求：POST {Endpoint}/embed  {"inputs": ["..."]}
//   - 响应：[[f1, f2, ...]] 或 {"embeddings": [[...]]}
//
// 请求经过熔断器：连续失败达到阈值后直接返回 UNAVAILABLE，不再打到编码服务。
type HTTPTextEncoder struct {
	// Endpoint 服务端点，例如 "http://localhost:8081"
	Endpoint string

	// Path 推理路径，默认 /embed
	Path string

	// Dimension 期望的向量维度，<=0 时不校验
	Dimension int

	// Timeout 超时时间
	Timeout time.Duration

	// Auth 认证信息
	Auth *AuthConfig

	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]float64]
}

// AuthConfig 认证配置
type AuthConfig struct {
	Type   string // "bearer", "api_key"
	Token  string
	APIKey string
}

// BreakerConfig 熔断参数
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration // 打开状态持续多久后进入半开
	OnStateChange    func(from, to string)
}

// NewHTTPTextEncoder 创建编码客户端。
func NewHTTPTextEncoder(endpoint string, opts ...EncoderOption) *HTTPTextEncoder {
	c := &HTTPTextEncoder{
		Endpoint:  endpoint,
		Path:      "/embed",
		Dimension: core.EmbeddingDim,
		Timeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.Timeout}
	}
	if c.breaker == nil {
		c.breaker = newBreaker(BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second})
	}
	return c
}

// EncoderOption 编码客户端配置选项
type EncoderOption func(*HTTPTextEncoder)

// WithEncoderTimeout 设置超时时间
func WithEncoderTimeout(timeout time.Duration) EncoderOption {
	return func(c *HTTPTextEncoder) {
		c.Timeout = timeout
		if c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithEncoderDimension 设置期望维度
func WithEncoderDimension(dim int) EncoderOption {
	return func(c *HTTPTextEncoder) { c.Dimension = dim }
}

// WithEncoderPath 设置推理路径
func WithEncoderPath(path string) EncoderOption {
	return func(c *HTTPTextEncoder) { c.Path = path }
}

// WithEncoderAuth 设置认证信息
func WithEncoderAuth(auth *AuthConfig) EncoderOption {
	return func(c *HTTPTextEncoder) { c.Auth = auth }
}

// WithEncoderHTTPClient 设置自定义 HTTP 客户端
func WithEncoderHTTPClient(httpClient *http.Client) EncoderOption {
	return func(c *HTTPTextEncoder) { c.httpClient = httpClient }
}

// WithEncoderBreaker 设置熔断参数
func WithEncoderBreaker(cfg BreakerConfig) EncoderOption {
	return func(c *HTTPTextEncoder) { c.breaker = newBreaker(cfg) }
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[[]float64] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[[]float64](gobreaker.Settings{
		Name:        "text-encoder",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(from.String(), to.String())
			}
		},
	})
}

// BreakerState 熔断器状态：closed / half-open / open。
func (c *HTTPTextEncoder) BreakerState() string {
	return c.breaker.State().String()
}

// Encode 编码单条文本。
func (c *HTTPTextEncoder) Encode(ctx context.Context, text string) ([]float64, error) {
	vec, err := c.breaker.Execute(func() ([]float64, error) {
		return c.encode(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, core.Unavailable(core.ModuleService, err)
		}
		if core.IsDomainError(err) {
			return nil, err
		}
		return nil, core.Unavailable(core.ModuleService, err)
	}
	return vec, nil
}

func (c *HTTPTextEncoder) encode(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{"inputs": []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+c.Path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.addAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("encoder request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encoder error: status=%d, body=%s", resp.StatusCode, string(data))
	}

	vec, err := parseEmbedding(data)
	if err != nil {
		return nil, err
	}
	if c.Dimension > 0 && len(vec) != c.Dimension {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInternalError,
			fmt.Sprintf("encoder returned %d dims, want %d", len(vec), c.Dimension))
	}
	return vec, nil
}

// parseEmbedding 依次尝试 [[...]]、{"embeddings": [[...]]}、[...] 三种格式。
func parseEmbedding(data []byte) ([]float64, error) {
	var batch [][]float64
	if err := json.Unmarshal(data, &batch); err == nil && len(batch) > 0 {
		return batch[0], nil
	}

	var obj struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && len(obj.Embeddings) > 0 {
		return obj.Embeddings[0], nil
	}

	var single []float64
	if err := json.Unmarshal(data, &single); err == nil && len(single) > 0 {
		return single, nil
	}
	return nil, fmt.Errorf("unable to parse encoder response: %.200s", string(data))
}

func (c *HTTPTextEncoder) addAuth(req *http.Request) {
	if c.Auth == nil {
		return
	}
	switch c.Auth.Type {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.Auth.Token)
	case "api_key":
		req.Header.Set("X-API-Key", c.Auth.APIKey)
	}
}
