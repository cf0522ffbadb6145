package adms

import (
	"context"
	"fmt"
	"time"

	"pqmap-analyzer/internal/config"
	"pqmap-analyzer/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// statusResponse 系统状态响应
type statusResponse struct {
	Status string `json:"status"` // normal, maintenance, emergency
}

// maintenanceWindowsResponse 检修窗口响应
type maintenanceWindowsResponse struct {
	Windows []models.MaintenanceWindow `json:"windows"`
}

// Client ADMS 对接客户端
// 为检测上下文提供系统状态和检修窗口；ADMS 不可达时由调用方降级为空上下文
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建 ADMS 客户端
func NewClient(cfg *config.ADMSConfig, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// GetSystemStatus 查询电网系统状态
func (c *Client) GetSystemStatus(ctx context.Context) (string, error) {
	var response statusResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&response).
		Get("/api/v1/system/status")

	if err != nil {
		return "", fmt.Errorf("failed to call ADMS status API: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ADMS status API returned %d", resp.StatusCode())
	}

	c.logger.Debug("Fetched ADMS system status",
		zap.String("status", response.Status),
	)

	return response.Status, nil
}

// GetMaintenanceWindows 查询时间段内的检修窗口
func (c *Client) GetMaintenanceWindows(ctx context.Context, from, to time.Time) ([]models.MaintenanceWindow, error) {
	var response maintenanceWindowsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("from", from.UTC().Format(time.RFC3339)).
		SetQueryParam("to", to.UTC().Format(time.RFC3339)).
		SetResult(&response).
		Get("/api/v1/maintenance-windows")

	if err != nil {
		return nil, fmt.Errorf("failed to call ADMS maintenance API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ADMS maintenance API returned %d", resp.StatusCode())
	}

	c.logger.Debug("Fetched ADMS maintenance windows",
		zap.Int("window_count", len(response.Windows)),
	)

	return response.Windows, nil
}
