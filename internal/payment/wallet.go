package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tranvu/mercato/internal/domain"
)

// WalletGateway is the production Gateway talking to the wallet provider's
// HTTP API.
type WalletGateway struct {
	baseURL    string
	merchantID string
	apiKey     string
	client     *http.Client
	logger     *slog.Logger
}

// WalletConfig configures the wallet gateway client.
type WalletConfig struct {
	BaseURL    string
	MerchantID string
	APIKey     string
	Timeout    time.Duration
}

// NewWalletGateway creates a wallet gateway client.
func NewWalletGateway(cfg WalletConfig, logger *slog.Logger) (*WalletGateway, error) {
	if cfg.BaseURL == "" {
		return nil, domain.Errorf(domain.EINVALID, "payment.NewWalletGateway", "wallet base URL is required")
	}
	if cfg.MerchantID == "" || cfg.APIKey == "" {
		return nil, domain.Errorf(domain.EINVALID, "payment.NewWalletGateway", "wallet credentials are required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &WalletGateway{
		baseURL:    cfg.BaseURL,
		merchantID: cfg.MerchantID,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type walletInitiateRequest struct {
	MerchantID string `json:"merchantId"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	ReturnType string `json:"returnType"`
	ReturnURL  string `json:"returnUrl"`
}

type walletInitiateResponse struct {
	ResultCode    int    `json:"resultCode"` // 0 on success
	Message       string `json:"message"`
	TransactionID string `json:"transId"`
	PayURL        string `json:"payUrl"`
	Deeplink      string `json:"deeplink"`
	QRCodeURL     string `json:"qrCodeUrl"`
}

func (g *WalletGateway) Initiate(ctx context.Context, params InitiateParams) (*InitiateResult, error) {
	body, err := json.Marshal(walletInitiateRequest{
		MerchantID: g.merchantID,
		OrderID:    params.OrderID,
		Amount:     params.AmountCents,
		Currency:   params.Currency,
		ReturnType: string(params.ReturnType),
		ReturnURL:  params.ReturnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal initiate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v2/gateway/api/create", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build initiate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		cause := ErrGatewayUnavailable
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			cause = ErrGatewayTimeout
		}
		return nil, domain.WrapError(fmt.Errorf("%w: %v", cause, err),
			domain.EPAYMENT, "payment.Initiate", "wallet gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.WrapError(err, domain.EPAYMENT, "payment.Initiate", "reading wallet response")
	}
	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("wallet gateway returned non-200",
			"status", resp.StatusCode, "order_id", params.OrderID)
		return nil, domain.WrapError(fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode),
			domain.EPAYMENT, "payment.Initiate", "wallet gateway error")
	}

	var out walletInitiateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domain.WrapError(err, domain.EPAYMENT, "payment.Initiate", "decoding wallet response")
	}

	result := &InitiateResult{
		Success:       out.ResultCode == 0,
		TransactionID: out.TransactionID,
		PayURL:        out.PayURL,
		Deeplink:      out.Deeplink,
		QRCode:        out.QRCodeURL,
		Message:       out.Message,
	}
	if !result.Success {
		g.logger.Warn("wallet initiation declined",
			"order_id", params.OrderID, "result_code", out.ResultCode, "message", out.Message)
	}
	return result, nil
}

var _ Gateway = (*WalletGateway)(nil)
