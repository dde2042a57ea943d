package paypal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// 通道错误定义
var (
	ErrConfigInvalid   = errors.New("paypal config invalid")
	ErrAuthFailed      = errors.New("paypal auth failed")
	ErrRequestFailed   = errors.New("paypal request failed")
	ErrResponseInvalid = errors.New("paypal response invalid")
)

const defaultTimeout = 12 * time.Second

// Config PayPal Payouts 通道配置
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// BatchItem 批量打款单项
type BatchItem struct {
	ReceiverEmail string
	Amount        string
	Currency      string
	SenderItemID  string
	Note          string
}

// BatchInput 批量打款请求
type BatchInput struct {
	SenderBatchID string
	EmailSubject  string
	Items         []BatchItem
}

// BatchItemResult 批量打款单项结果
type BatchItemResult struct {
	ItemID            string
	SenderItemID      string
	TransactionStatus string
	ErrorMessage      string
}

// BatchResult 批量打款结果
type BatchResult struct {
	BatchID     string
	BatchStatus string
	Items       []BatchItemResult
}

// Succeeded 批次是否终态成功
func (r *BatchResult) Succeeded() bool {
	return r != nil && strings.EqualFold(r.BatchStatus, "SUCCESS")
}

// Failed 批次是否终态失败
func (r *BatchResult) Failed() bool {
	if r == nil {
		return false
	}
	status := strings.ToUpper(strings.TrimSpace(r.BatchStatus))
	return status == "DENIED" || status == "CANCELED"
}

// CreatePayoutBatch 创建批量打款
func CreatePayoutBatch(cfg Config, input BatchInput) (*BatchResult, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.SenderBatchID) == "" || len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrRequestFailed)
	}

	token, err := getAccessToken(cfg)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]interface{}, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, map[string]interface{}{
			"recipient_type": "EMAIL",
			"receiver":       item.ReceiverEmail,
			"note":           item.Note,
			"sender_item_id": item.SenderItemID,
			"amount": map[string]string{
				"value":    item.Amount,
				"currency": item.Currency,
			},
		})
	}
	body := map[string]interface{}{
		"sender_batch_header": map[string]string{
			"sender_batch_id": input.SenderBatchID,
			"email_subject":   input.EmailSubject,
		},
		"items": items,
	}

	payload, err := doJSONRequest(cfg, token, http.MethodPost, "/v1/payments/payouts", body)
	if err != nil {
		return nil, err
	}
	return parseBatchPayload(payload)
}

// GetPayoutBatch 查询批量打款状态
func GetPayoutBatch(cfg Config, batchID string) (*BatchResult, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("%w: empty batch id", ErrRequestFailed)
	}

	token, err := getAccessToken(cfg)
	if err != nil {
		return nil, err
	}
	payload, err := doJSONRequest(cfg, token, http.MethodGet, "/v1/payments/payouts/"+url.PathEscape(batchID), nil)
	if err != nil {
		return nil, err
	}
	return parseBatchPayload(payload)
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" || strings.TrimSpace(cfg.BaseURL) == "" {
		return ErrConfigInvalid
	}
	return nil
}

func getAccessToken(cfg Config) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(cfg.BaseURL, "/")+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := withDefaultTimeout(http.DefaultClient)
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	token := readString(payload, "access_token")
	if token == "" {
		return "", fmt.Errorf("%w: missing access_token", ErrResponseInvalid)
	}
	return token, nil
}

func doJSONRequest(cfg Config, token, method, path string, body interface{}) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, strings.TrimRight(cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	client := withDefaultTimeout(http.DefaultClient)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d body %s", ErrRequestFailed, resp.StatusCode, truncate(string(data), 256))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return payload, nil
}

func parseBatchPayload(payload map[string]interface{}) (*BatchResult, error) {
	header, ok := payload["batch_header"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing batch_header", ErrResponseInvalid)
	}
	result := &BatchResult{
		BatchID:     readString(header, "payout_batch_id"),
		BatchStatus: readString(header, "batch_status"),
	}
	if result.BatchID == "" {
		return nil, fmt.Errorf("%w: missing payout_batch_id", ErrResponseInvalid)
	}

	for _, raw := range readArray(payload, "items") {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		entry := BatchItemResult{
			ItemID:            readString(item, "payout_item_id"),
			TransactionStatus: readString(item, "transaction_status"),
		}
		if payoutItem, ok := item["payout_item"].(map[string]interface{}); ok {
			entry.SenderItemID = readString(payoutItem, "sender_item_id")
		}
		if errObj, ok := item["errors"].(map[string]interface{}); ok {
			entry.ErrorMessage = readString(errObj, "message")
		}
		result.Items = append(result.Items, entry)
	}
	return result, nil
}

func withDefaultTimeout(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: defaultTimeout}
	}
	if client.Timeout > 0 {
		return client
	}
	cloned := *client
	cloned.Timeout = defaultTimeout
	return &cloned
}

func readString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if value, ok := payload[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func readArray(payload map[string]interface{}, key string) []interface{} {
	if payload == nil {
		return nil
	}
	if value, ok := payload[key].([]interface{}); ok {
		return value
	}
	return nil
}

func truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	return value[:limit]
}
