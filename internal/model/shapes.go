package model

import "time"

// InvoiceItem is a line on a VAT invoice.
type InvoiceItem struct {
	ItemName           string  `json:"item_name"`
	Specification      string  `json:"specification"`
	Unit               string  `json:"unit"`
	Quantity           float64 `json:"quantity"`
	PricePerUnit       float64 `json:"price_per_unit"`
	AmountExcludingTax float64 `json:"amount_excluding_tax"`
	TaxRate            float64 `json:"tax_rate"`
	TaxAmount          float64 `json:"tax_amount"`
}

// Invoice is the structured shape of a 发票.
type Invoice struct {
	IssueDate               *time.Time    `json:"issue_date"`
	InvoiceCode             string        `json:"invoice_code"`
	InvoiceNumber           string        `json:"invoice_number"`
	BuyerName               string        `json:"buyer_name"`
	BuyerTaxID              string        `json:"buyer_tax_id"`
	BuyerAddressPhone       string        `json:"buyer_address_phone"`
	BuyerBankAccount        string        `json:"buyer_bank_account"`
	SellerName              string        `json:"seller_name"`
	SellerTaxID             string        `json:"seller_tax_id"`
	SellerAddressPhone      string        `json:"seller_address_phone"`
	SellerBankAccount       string        `json:"seller_bank_account"`
	Currency                string        `json:"currency"`
	InvoiceType             string        `json:"invoice_type"`
	InvoiceStatus           string        `json:"invoice_status"`
	CheckCode               string        `json:"check_code"`
	PaymentMethod           string        `json:"payment_method"`
	Remark                  string        `json:"remark"`
	Items                   []InvoiceItem `json:"items"`
	TotalAmountExcludingTax float64       `json:"total_amount_excluding_tax"`
	TotalTaxAmount          float64       `json:"total_tax_amount"`
	TotalAmountIncludingTax float64       `json:"total_amount_including_tax"`
}

// Itinerary is the structured shape of a 行程单 (air or rail ticket).
type Itinerary struct {
	DepartureDatetime *time.Time `json:"departure_datetime"`
	ArrivalDatetime   *time.Time `json:"arrival_datetime"`
	TransportType     string     `json:"transport_type"`
	TicketNumber      string     `json:"ticket_number"`
	PassengerName     string     `json:"passenger_name"`
	IDCardNumber      string     `json:"id_card_number"`
	DepartureStation  string     `json:"departure_station"`
	ArrivalStation    string     `json:"arrival_station"`
	FlightTrainNumber string     `json:"flight_train_number"`
	SeatClass         string     `json:"seat_class"`
	SeatNumber        string     `json:"seat_number"`
	PaymentMethod     string     `json:"payment_method"`
	BaseFare          float64    `json:"base_fare"`
	FuelSurcharge     float64    `json:"fuel_surcharge"`
	AirportRailwayFee float64    `json:"airport_railway_fee"`
	InsuranceFee      float64    `json:"insurance_fee"`
	TotalAmount       float64    `json:"total_amount"`
}

// ReceiptSlipItem is a purchased item on a till slip.
type ReceiptSlipItem struct {
	ItemName     string  `json:"item_name"`
	CategoryHint string  `json:"category_hint"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
}

// ReceiptSlip is the structured shape of a 小票.
type ReceiptSlip struct {
	TransactionDatetime *time.Time        `json:"transaction_datetime"`
	MerchantName        string            `json:"merchant_name"`
	StoreLocation       string            `json:"store_location"`
	TerminalID          string            `json:"terminal_id"`
	CashierID           string            `json:"cashier_id"`
	TransactionID       string            `json:"transaction_id"`
	PaymentMethod       string            `json:"payment_method"`
	Items               []ReceiptSlipItem `json:"items"`
	TotalAmount         float64           `json:"total_amount"`
}

// TransferInfo describes the bank transfer behind a receipt.
type TransferInfo struct {
	BankName      string `json:"bank_name"`
	AccountFrom   string `json:"account_from"`
	AccountTo     string `json:"account_to"`
	TransactionID string `json:"transaction_id"`
}

// Receipt is the structured shape of a 收据.
type Receipt struct {
	IssueDate      *time.Time    `json:"issue_date"`
	TransferInfo   *TransferInfo `json:"transfer_info"`
	Title          string        `json:"title"`
	ReceiptNumber  string        `json:"receipt_number"`
	PayerName      string        `json:"payer_name"`
	PayeeName      string        `json:"payee_name"`
	AmountInWords  string        `json:"amount_in_words"`
	Currency       string        `json:"currency"`
	Reason         string        `json:"reason"`
	PaymentMethod  string        `json:"payment_method"`
	WitnessName    string        `json:"witness_name"`
	Notes          string        `json:"notes"`
	AmountInDigits float64       `json:"amount_in_digits"`
	IsOfficial     bool          `json:"is_official"`
}
