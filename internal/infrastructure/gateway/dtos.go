package gateway

import "github.com/shopspring/decimal"

// Wire types for the payment provider's REST API.

type customerResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	CpfCnpj string `json:"cpfCnpj"`
}

type customerSearchResponse struct {
	Data []customerResponse `json:"data"`
}

type createCustomerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	CpfCnpj string `json:"cpfCnpj"`
	Address string `json:"address,omitempty"`
}

type createChargeRequest struct {
	Customer          string          `json:"customer"`
	BillingType       string          `json:"billingType"`
	Value             decimal.Decimal `json:"value"`
	DueDate           string          `json:"dueDate"`
	ExternalReference string          `json:"externalReference"`
	Description       string          `json:"description,omitempty"`
	InstallmentCount  int             `json:"installmentCount,omitempty"`
	CreditCard        *creditCard     `json:"creditCard,omitempty"`
}

type creditCard struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	Ccv         string `json:"ccv"`
}

type chargeResponse struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	Value             decimal.Decimal `json:"value"`
	InvoiceURL        string          `json:"invoiceUrl"`
	ExternalReference string          `json:"externalReference"`
	BillingType       string          `json:"billingType"`
}

type pixQrCodeResponse struct {
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

type deleteChargeResponse struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}
