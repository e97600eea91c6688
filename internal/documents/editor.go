package documents

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/internal/authgate"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tablestore"
)

var (
	ErrConfirmationRequired = errors.New("deletion requires confirmation")
	ErrNotFound             = errors.New("document not found")
	ErrInvalidID            = errors.New("invalid document id")
)

// Step names a write of the save/delete sequence.
type Step int

const (
	StepCreateInvoice Step = iota
	StepCreateItems
	StepUpdateInvoice
	StepDeleteItems
	StepDeleteInvoice
)

var stepLabels = map[Step]string{
	StepCreateInvoice: "Error creating invoice",
	StepCreateItems:   "Error creating invoice items",
	StepUpdateInvoice: "Error updating invoice",
	StepDeleteItems:   "Error deleting invoice items",
	StepDeleteInvoice: "Error deleting invoice",
}

// StepError is a remote write failure, labelled by the step that failed.
// Steps after it were not attempted and earlier ones are not rolled back.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return stepLabels[e.Step] + ": " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

// Editor holds one user's documents for the duration of a request.
type Editor struct {
	store tablestore.Client
	gate  authgate.Gate
	now   func() time.Time

	docs []Document
}

// NewEditor builds an editor over store; gate is consulted before every write.
func NewEditor(store tablestore.Client, gate authgate.Gate) *Editor {
	return &Editor{store: store, gate: gate, now: time.Now}
}

// Documents returns the in-memory list as last loaded and reconciled.
func (e *Editor) Documents() []Document { return e.docs }

// Find returns the document with id from the in-memory list.
func (e *Editor) Find(id string) (Document, bool) {
	for _, d := range e.docs {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

// ListDocuments loads the user's documents with their items, newest first.
// On failure the list is emptied rather than left stale.
func (e *Editor) ListDocuments(ctx context.Context, userID uint) ([]Document, error) {
	var rows []models.Invoice
	err := e.store.Select(ctx, models.TableInvoices, &rows, tablestore.Query{
		Filters: []tablestore.Filter{tablestore.Eq("user_id", userID)},
		Order:   "created_at desc",
		Preload: []tablestore.Preload{{Association: "Items", Order: "position asc, id asc"}},
	})
	if err != nil {
		e.docs = nil
		return nil, fmt.Errorf("Error loading invoices: %w", err)
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, fromRow(row))
	}
	e.docs = docs
	return docs, nil
}

// count returns how many loaded documents have the given type.
func (e *Editor) count(t models.DocumentType) int {
	n := 0
	for _, d := range e.docs {
		if d.Type == t {
			n++
		}
	}
	return n
}

// StartNewDocument builds a draft numbered after the documents of that type
// already held. Nothing is written.
func (e *Editor) StartNewDocument(isInvoice bool) Document {
	t := models.TypeQuotation
	if isInvoice {
		t = models.TypeInvoice
	}
	return NewDraft(isInvoice, e.count(t), e.now())
}

func (e *Editor) requireUser(ctx context.Context) (uint, error) {
	user, err := e.gate.CurrentUser(ctx)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, auth.ErrSessionExpired
	}
	return user.ID, nil
}

// SaveDocument validates, recomputes the total and writes doc. A temporary id
// inserts the row and then its items; a persisted id updates the row, deletes
// every item and inserts the current ones. The first failing step aborts.
func (e *Editor) SaveDocument(ctx context.Context, doc Document) (Document, error) {
	if err := ValidateForSave(doc, doc.IsInvoice()).Err(); err != nil {
		return doc, err
	}
	userID, err := e.requireUser(ctx)
	if err != nil {
		return doc, err
	}

	doc = doc.clone()
	doc.UserID = userID
	doc.Total = ComputeTotal(doc.Items)
	if doc.Type == "" {
		doc.Type = models.TypeInvoice
	}
	if !doc.IsInvoice() {
		doc.DueDate = ""
	}

	if doc.IsTemporary() {
		saved, err := e.create(ctx, doc)
		if err != nil {
			return doc, err
		}
		e.reconcile(doc.ID, saved)
		return saved, nil
	}
	saved, err := e.update(ctx, doc)
	if err != nil {
		return doc, err
	}
	e.reconcile(doc.ID, saved)
	return saved, nil
}

func (e *Editor) create(ctx context.Context, doc Document) (Document, error) {
	row := doc.Row()
	row.ID = 0
	row.CreatedAt, row.UpdatedAt = time.Time{}, time.Time{}
	if err := e.store.Insert(ctx, models.TableInvoices, &row); err != nil {
		return doc, &StepError{Step: StepCreateInvoice, Err: err}
	}

	items := itemRows(row.ID, doc.Items)
	if err := e.store.Insert(ctx, models.TableInvoiceItems, &items); err != nil {
		return doc, &StepError{Step: StepCreateItems, Err: err}
	}
	row.Items = items
	return fromRow(row), nil
}

func (e *Editor) update(ctx context.Context, doc Document) (Document, error) {
	row := doc.Row()
	if row.ID == 0 {
		return doc, ErrInvalidID
	}
	row.UpdatedAt = e.now()
	patch := map[string]any{
		"number":        row.Number,
		"customer_name": row.CustomerName,
		"date":          row.Date,
		"due_date":      row.DueDate,
		"status":        row.Status,
		"type":          row.Type,
		"total":         row.Total,
		"updated_at":    row.UpdatedAt,
	}
	n, err := e.store.Update(ctx, models.TableInvoices, patch,
		tablestore.Eq("id", row.ID), tablestore.Eq("user_id", row.UserID))
	if err != nil {
		return doc, &StepError{Step: StepUpdateInvoice, Err: err}
	}
	// not owned (or gone): leave its items alone
	if n == 0 {
		return doc, ErrNotFound
	}

	if err := e.deleteItems(ctx, row.ID); err != nil {
		return doc, err
	}

	items := itemRows(row.ID, doc.Items)
	if err := e.store.Insert(ctx, models.TableInvoiceItems, &items); err != nil {
		return doc, &StepError{Step: StepCreateItems, Err: err}
	}
	row.Items = items
	return fromRow(row), nil
}

// deleteItems removes every item of a document. Finding none is not an error.
func (e *Editor) deleteItems(ctx context.Context, invoiceID uint) error {
	_, err := e.store.Delete(ctx, models.TableInvoiceItems, &models.InvoiceItem{},
		tablestore.Eq("invoice_id", invoiceID))
	if err != nil && !errors.Is(err, tablestore.ErrNoRows) {
		return &StepError{Step: StepDeleteItems, Err: err}
	}
	return nil
}

// reconcile replaces the document previously held under oldID, or prepends saved.
func (e *Editor) reconcile(oldID string, saved Document) {
	for i := range e.docs {
		if e.docs[i].ID == oldID {
			e.docs[i] = saved
			return
		}
	}
	e.docs = append([]Document{saved}, e.docs...)
}

// DeleteDocument removes a document's items, then the document. It refuses to
// run unless the caller confirmed.
func (e *Editor) DeleteDocument(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if IsTempID(id) {
		e.remove(id)
		return nil
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return ErrInvalidID
	}
	userID, err := e.requireUser(ctx)
	if err != nil {
		return err
	}

	invoiceID := uint(n)
	// ownership check before touching the items
	var owned []models.Invoice
	err = e.store.Select(ctx, models.TableInvoices, &owned, tablestore.Query{
		Filters: []tablestore.Filter{tablestore.Eq("id", invoiceID), tablestore.Eq("user_id", userID)},
		Limit:   1,
	})
	if err != nil {
		return &StepError{Step: StepDeleteInvoice, Err: err}
	}
	if len(owned) == 0 {
		return ErrNotFound
	}

	if err := e.deleteItems(ctx, invoiceID); err != nil {
		return err
	}
	_, err = e.store.Delete(ctx, models.TableInvoices, &models.Invoice{},
		tablestore.Eq("id", invoiceID), tablestore.Eq("user_id", userID))
	if errors.Is(err, tablestore.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return &StepError{Step: StepDeleteInvoice, Err: err}
	}
	e.remove(id)
	return nil
}

func (e *Editor) remove(id string) {
	kept := e.docs[:0]
	for _, d := range e.docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	e.docs = kept
}

// Load fetches a single owned document with its items.
func (e *Editor) Load(ctx context.Context, userID uint, id string) (Document, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return Document{}, ErrInvalidID
	}
	var rows []models.Invoice
	err = e.store.Select(ctx, models.TableInvoices, &rows, tablestore.Query{
		Filters: []tablestore.Filter{tablestore.Eq("id", uint(n)), tablestore.Eq("user_id", userID)},
		Limit:   1,
		Preload: []tablestore.Preload{{Association: "Items", Order: "position asc, id asc"}},
	})
	if err != nil {
		return Document{}, err
	}
	if len(rows) == 0 {
		return Document{}, ErrNotFound
	}
	return fromRow(rows[0]), nil
}
