// Package documents implements the invoice/quotation editor: the user's document
// list, the draft being authored, its derived total and persistence through a
// tablestore.Client.
package documents

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/validation"
)

// TempIDPrefix marks ids generated in memory that the store has not assigned yet.
const TempIDPrefix = "tmp_"

const dateLayout = "2006-01-02"

// invoices fall due two weeks after issue
const dueAfter = 14 * 24 * time.Hour

var ErrItemNotFound = errors.New("line item not found")

// NewTempID returns a fresh temporary id.
func NewTempID() string { return TempIDPrefix + uuid.NewString() }

// IsTempID reports whether id has not been persisted yet.
func IsTempID(id string) bool { return id == "" || strings.HasPrefix(id, TempIDPrefix) }

// LineItem is one row of a document.
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
}

// Document is an invoice or a quotation as the editor sees it.
type Document struct {
	ID           string                `json:"id"`
	UserID       uint                  `json:"user_id,omitempty"`
	Number       string                `json:"number"`
	CustomerName string                `json:"customer_name"`
	CustomerID   *uint                 `json:"customer_id"`
	Date         string                `json:"date"`
	DueDate      string                `json:"due_date"`
	Items        []LineItem            `json:"items"`
	Status       models.DocumentStatus `json:"status"`
	Total        float64               `json:"total"`
	Type         models.DocumentType   `json:"type"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

func (d Document) IsInvoice() bool { return d.Type != models.TypeQuotation }

func (d Document) IsTemporary() bool { return IsTempID(d.ID) }

// clone copies d so item edits never alias the caller's slice.
func (d Document) clone() Document {
	d.Items = append([]LineItem(nil), d.Items...)
	return d
}

// NumberPrefix returns INV or QT.
func NumberPrefix(t models.DocumentType) string {
	if t == models.TypeQuotation {
		return "QT"
	}
	return "INV"
}

// SuggestNumber builds the suggested number for the next document of a type,
// given how many of that type already exist.
func SuggestNumber(t models.DocumentType, existing int) string {
	return NumberPrefix(t) + "-00" + strconv.Itoa(existing+1)
}

// NewDraft builds a blank document dated today. Nothing is persisted.
func NewDraft(isInvoice bool, existing int, today time.Time) Document {
	t := models.TypeQuotation
	if isInvoice {
		t = models.TypeInvoice
	}
	d := Document{
		ID:     NewTempID(),
		Number: SuggestNumber(t, existing),
		Date:   today.Format(dateLayout),
		Items:  []LineItem{{ID: NewTempID()}},
		Status: models.StatusDraft,
		Type:   t,
	}
	if isInvoice {
		d.DueDate = today.Add(dueAfter).Format(dateLayout)
	}
	return d
}

// ComputeTotal sums quantity*price. The result is never rounded.
func ComputeTotal(items []LineItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Quantity * it.Price
	}
	return total
}

// FormatAmount rounds to two decimals, for display only.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ValidateForSave checks the fields required before any write.
func ValidateForSave(d Document, isInvoice bool) validation.Violations {
	v := validation.Violations{}
	validation.Required("number", d.Number, v)
	validation.Required("customer_name", d.CustomerName, v)
	validation.Required("date", d.Date, v)
	if isInvoice {
		validation.Required("due_date", d.DueDate, v)
	}
	return v
}

var numberSuffixRe = regexp.MustCompile(`^(?:INV|QT)-(.+)$`)
var trailingDigitsRe = regexp.MustCompile(`(\d+)$`)

// ToggleDocumentType flips invoice and quotation and rewrites the number prefix,
// keeping the suffix: INV-003 becomes QT-003. A number with no recognisable
// suffix is left as typed.
func ToggleDocumentType(d Document) Document {
	d = d.clone()
	if d.IsInvoice() {
		d.Type = models.TypeQuotation
	} else {
		d.Type = models.TypeInvoice
	}
	prefix := NumberPrefix(d.Type)
	if m := numberSuffixRe.FindStringSubmatch(d.Number); m != nil {
		d.Number = prefix + "-" + m[1]
	} else if m := trailingDigitsRe.FindStringSubmatch(d.Number); m != nil {
		d.Number = prefix + "-" + m[1]
	}
	return d
}

// ItemEdit is one field change on a line item.
type ItemEdit interface {
	apply(*LineItem) error
}

type SetDescription struct{ Value string }

type SetQuantity struct{ Value float64 }

type SetPrice struct{ Value float64 }

func (e SetDescription) apply(it *LineItem) error {
	it.Description = e.Value
	return nil
}

func (e SetQuantity) apply(it *LineItem) error {
	v := validation.Violations{}
	validation.NonNegativeFloat("quantity", e.Value, v)
	if err := v.Err(); err != nil {
		return err
	}
	it.Quantity = e.Value
	return nil
}

func (e SetPrice) apply(it *LineItem) error {
	v := validation.Violations{}
	validation.NonNegativeFloat("price", e.Value, v)
	if err := v.Err(); err != nil {
		return err
	}
	it.Price = e.Value
	return nil
}

// AddItem appends a blank line item.
func AddItem(d Document) Document {
	d = d.clone()
	d.Items = append(d.Items, LineItem{ID: NewTempID()})
	return d
}

// UpdateItem applies edit to the item with the given id.
func UpdateItem(d Document, id string, edit ItemEdit) (Document, error) {
	d = d.clone()
	for i := range d.Items {
		if d.Items[i].ID == id {
			if err := edit.apply(&d.Items[i]); err != nil {
				return d, err
			}
			return d, nil
		}
	}
	return d, ErrItemNotFound
}

// RemoveItem drops the item with the given id; unknown ids are ignored.
func RemoveItem(d Document, id string) Document {
	d = d.clone()
	kept := d.Items[:0]
	for _, it := range d.Items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	d.Items = kept
	return d
}

func fromRow(row models.Invoice) Document {
	d := Document{
		ID:           strconv.FormatUint(uint64(row.ID), 10),
		UserID:       row.UserID,
		Number:       row.Number,
		CustomerName: row.CustomerName,
		CustomerID:   row.CustomerID,
		Date:         row.Date,
		DueDate:      row.DueDate,
		Status:       row.Status,
		Total:        row.Total,
		Type:         row.Type,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		Items:        make([]LineItem, 0, len(row.Items)),
	}
	if d.Type == "" {
		d.Type = models.TypeInvoice
	}
	if d.Status == "" {
		d.Status = models.StatusDraft
	}
	for _, it := range row.Items {
		d.Items = append(d.Items, LineItem{
			ID:          strconv.FormatUint(uint64(it.ID), 10),
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	return d
}

func itemRows(invoiceID uint, items []LineItem) []models.InvoiceItem {
	rows := make([]models.InvoiceItem, 0, len(items))
	for i, it := range items {
		rows = append(rows, models.InvoiceItem{
			InvoiceID:   invoiceID,
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Position:    i,
		})
	}
	return rows
}

// Row converts d to the storage model without items; a temporary id maps to zero.
// customer_id is never written.
func (d Document) Row() models.Invoice {
	row := models.Invoice{
		UserID:       d.UserID,
		Number:       d.Number,
		CustomerName: d.CustomerName,
		Date:         d.Date,
		Status:       d.Status,
		Type:         d.Type,
		Total:        d.Total,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if id, err := strconv.ParseUint(d.ID, 10, 64); err == nil {
		row.ID = uint(id)
	}
	if d.IsInvoice() {
		row.DueDate = d.DueDate
	}
	if row.Status == "" {
		row.Status = models.StatusDraft
	}
	if row.Type == "" {
		row.Type = models.TypeInvoice
	}
	return row
}
