package models

import (
	"time"
)

// Table names used through the table client.
const (
	TableInvoices     = "invoices"
	TableInvoiceItems = "invoice_items"
	TableTodos        = "todos"
	TableUsers        = "users"
)

// DocumentType distinguishes invoices from quotations; both live in the invoices table.
type DocumentType string

const (
	TypeInvoice   DocumentType = "invoice"
	TypeQuotation DocumentType = "quotation"
)

// DocumentStatus is purely descriptive; no transition rules are enforced.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusSent      DocumentStatus = "sent"
	StatusPaid      DocumentStatus = "paid"
	StatusOverdue   DocumentStatus = "overdue"
	StatusCancelled DocumentStatus = "cancelled"
)

// DocumentStatuses lists every accepted status.
var DocumentStatuses = []DocumentStatus{StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled}

// Invoice is a row of the invoices table. Quotations share the table, told apart by Type.
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// UserID is the owner of this document
	UserID uint `gorm:"index;not null" json:"user_id"`

	Number       string `gorm:"size:50" json:"number"`
	CustomerName string `gorm:"size:255" json:"customer_name"`
	// CustomerID exists in the schema but is never written.
	CustomerID *uint `json:"customer_id"`

	// Calendar dates, YYYY-MM-DD. DueDate is only meaningful for invoices.
	Date    string `gorm:"size:10" json:"date"`
	DueDate string `gorm:"size:10" json:"due_date"`

	Status DocumentStatus `gorm:"size:20;default:'draft'" json:"status"`
	Type   DocumentType   `gorm:"size:20;default:'invoice'" json:"type"`
	Total  float64        `json:"total"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items"`
}

// GetUserID returns the owner id.
func (i *Invoice) GetUserID() uint {
	return i.UserID
}

// InvoiceItem represents a line item on an invoice or quotation.
type InvoiceItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Parent document
	InvoiceID uint `gorm:"index;not null" json:"invoice_id"`

	Description string  `gorm:"size:500" json:"description"`
	Quantity    float64 `gorm:"not null;default:0" json:"quantity"`
	Price       float64 `gorm:"not null;default:0" json:"price"`

	// Position keeps list order across the delete-all/insert-all update cycle
	Position int `gorm:"default:0" json:"position"`
}

// LineTotal is quantity times price.
func (item *InvoiceItem) LineTotal() float64 {
	return item.Quantity * item.Price
}
