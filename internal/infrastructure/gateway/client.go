// Package gateway adapts the external payment provider's HTTP API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/config"
)

const dueDateLayout = "2006-01-02"

type HTTPGatewayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGatewayClient(cfg config.GatewayConfig) *HTTPGatewayClient {
	return &HTTPGatewayClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

// FindOrCreateCustomer looks the customer up by tax id before creating, so the
// same payer never turns into duplicate provider customers. A "customer already
// exists" response from the create call is resolved by re-querying.
func (c *HTTPGatewayClient) FindOrCreateCustomer(ctx context.Context, identity application.CustomerIdentity) (string, error) {
	searchURL := fmt.Sprintf("%s/v3/customers?cpfCnpj=%s", c.baseURL, url.QueryEscape(identity.TaxID))
	found, err := sendRequest[any, customerSearchResponse](c, ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}
	if len(found.Data) > 0 {
		return found.Data[0].ID, nil
	}

	createURL := fmt.Sprintf("%s/v3/customers", c.baseURL)
	req := createCustomerRequest{
		Name:    identity.Name,
		Email:   identity.Email,
		CpfCnpj: identity.TaxID,
		Address: identity.Address,
	}
	created, err := sendRequest[createCustomerRequest, customerResponse](c, ctx, http.MethodPost, createURL, &req)
	if err != nil {
		if gwErr, ok := IsGatewayError(err); ok && gwErr.StatusCode == http.StatusConflict {
			// Lost a race with a concurrent create. The lookup now hits.
			again, lookupErr := sendRequest[any, customerSearchResponse](c, ctx, http.MethodGet, searchURL, nil)
			if lookupErr == nil && len(again.Data) > 0 {
				return again.Data[0].ID, nil
			}
		}
		return "", err
	}

	return created.ID, nil
}

// CreateCharge posts the charge and, for PIX, makes the follow-up call for the
// QR payload and its expiry. Card charges come back already resolved.
func (c *HTTPGatewayClient) CreateCharge(ctx context.Context, req application.ChargeRequest) (*application.ProviderPayment, error) {
	chargeURL := fmt.Sprintf("%s/v3/payments", c.baseURL)
	body := createChargeRequest{
		Customer:          req.CustomerRef,
		BillingType:       req.BillingType,
		Value:             req.Value,
		DueDate:           req.DueDate.Format(dueDateLayout),
		ExternalReference: req.OrderID,
		Description:       req.Description,
		InstallmentCount:  req.Installments,
	}
	if req.Card != nil {
		body.CreditCard = &creditCard{
			HolderName:  req.Card.HolderName,
			Number:      req.Card.Number,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
			Ccv:         req.Card.CVV,
		}
	}

	charge, err := sendRequest[createChargeRequest, chargeResponse](c, ctx, http.MethodPost, chargeURL, &body)
	if err != nil {
		return nil, err
	}

	payment := &application.ProviderPayment{
		ID:         charge.ID,
		Status:     charge.Status,
		Value:      charge.Value,
		InvoiceURL: charge.InvoiceURL,
	}

	if req.BillingType == "PIX" {
		qrURL := fmt.Sprintf("%s/v3/payments/%s/pixQrCode", c.baseURL, charge.ID)
		qr, err := sendRequest[any, pixQrCodeResponse](c, ctx, http.MethodGet, qrURL, nil)
		if err != nil {
			return nil, err
		}
		payment.PixPayload = qr.Payload
		if qr.ExpirationDate != "" {
			if expires, parseErr := time.Parse(time.DateTime, qr.ExpirationDate); parseErr == nil {
				payment.PixExpires = &expires
			}
		}
	}

	return payment, nil
}

// CancelCharge is the compensating action for a charge the local store could
// not record. Best effort: an unconfirmed stray charge expires harmlessly.
func (c *HTTPGatewayClient) CancelCharge(ctx context.Context, providerPaymentID string) error {
	cancelURL := fmt.Sprintf("%s/v3/payments/%s", c.baseURL, providerPaymentID)
	_, err := sendRequest[any, deleteChargeResponse](c, ctx, http.MethodDelete, cancelURL, nil)
	return err
}

func sendRequest[Req any, Resp any](c *HTTPGatewayClient, ctx context.Context, method, url string, reqBody *Req) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("access_token", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		var gwErrResp gatewayErrorResponse
		if err := json.Unmarshal(body, &gwErrResp); err != nil || len(gwErrResp.Errors) == 0 {
			return nil, &GatewayError{
				Code:       "unknown",
				Message:    string(body),
				StatusCode: resp.StatusCode,
			}
		}
		return nil, &GatewayError{
			Code:       gwErrResp.Errors[0].Code,
			Message:    gwErrResp.Errors[0].Description,
			StatusCode: resp.StatusCode,
		}
	}

	var gwResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&gwResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &gwResp, nil
}
