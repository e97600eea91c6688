package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/internal/archive"
	"github.com/diewo77/go-backoffice/internal/authgate"
	"github.com/diewo77/go-backoffice/internal/documents"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/notice"
	"github.com/diewo77/go-backoffice/internal/render"
	"github.com/diewo77/go-backoffice/internal/tablestore"
	"github.com/diewo77/go-backoffice/view"
)

// DocumentHandler serves the invoice and quotation editor. A fresh Editor is
// built per request around the shared collaborators.
type DocumentHandler struct {
	store   tablestore.Client
	gate    authgate.Gate
	archive archive.Archive
	now     func() time.Time
}

func NewDocumentHandler(store tablestore.Client, gate authgate.Gate, arc archive.Archive) *DocumentHandler {
	if arc == nil {
		arc = archive.NullArchive{}
	}
	return &DocumentHandler{store: store, gate: gate, archive: arc, now: time.Now}
}

func (h *DocumentHandler) editor() *documents.Editor {
	return documents.NewEditor(h.store, h.gate)
}

type documentListResponse struct {
	Documents []documents.Document `json:"documents"`
	Banner    *notice.Banner       `json:"banner,omitempty"`
}

// List shows every document of the signed-in user, newest first. A failed read
// still answers 200 with an empty list and an error banner.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	docs, err := h.editor().ListDocuments(r.Context(), userID)
	resp := documentListResponse{Documents: docs}
	if resp.Documents == nil {
		resp.Documents = []documents.Document{}
	}
	if err != nil {
		slog.WarnContext(r.Context(), "list documents", "user_id", userID, "error", err)
		b := notice.Error(err, h.now())
		resp.Banner = &b
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, resp)
		return
	}
	data := map[string]any{"Documents": resp.Documents}
	if resp.Banner != nil {
		data["Banner"] = *resp.Banner
	}
	if err := view.Render(w, r, "documents.html", data); err != nil {
		http.Error(w, "Failed to render template: "+err.Error(), http.StatusInternalServerError)
	}
}

// New returns an unsaved draft. ?type=quotation starts a quotation; anything
// else starts an invoice.
func (h *DocumentHandler) New(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	ed := h.editor()
	if _, err := ed.ListDocuments(r.Context(), userID); err != nil {
		// numbering falls back to the documents we could read
		slog.WarnContext(r.Context(), "list documents for numbering", "user_id", userID, "error", err)
	}
	isInvoice := models.DocumentType(r.URL.Query().Get("type")) != models.TypeQuotation
	httpx.JSON(w, http.StatusOK, ed.StartNewDocument(isInvoice))
}

type saveResponse struct {
	Document documents.Document `json:"document"`
	Banner   notice.Banner      `json:"banner"`
}

// Save creates the document when its id is temporary and updates it otherwise.
func (h *DocumentHandler) Save(w http.ResponseWriter, r *http.Request) {
	var doc documents.Document
	if err := httpx.DecodeJSON(r, &doc); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	creating := doc.IsTemporary()
	saved, err := h.editor().SaveDocument(r.Context(), doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, msg := http.StatusOK, "Document updated"
	if creating {
		status, msg = http.StatusCreated, "Document created"
	}
	httpx.JSON(w, status, saveResponse{Document: saved, Banner: notice.Success(msg, h.now())})
}

// ToggleType switches a posted draft between invoice and quotation.
func (h *DocumentHandler) ToggleType(w http.ResponseWriter, r *http.Request) {
	var doc documents.Document
	if err := httpx.DecodeJSON(r, &doc); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, documents.ToggleDocumentType(doc))
}

// itemRequest carries one line item operation on a posted draft. For "update",
// exactly one of Description, Quantity or Price is set.
type itemRequest struct {
	Document    documents.Document `json:"document"`
	Op          string             `json:"op"` // add | update | remove
	ItemID      string             `json:"item_id"`
	Description *string            `json:"description"`
	Quantity    *float64           `json:"quantity"`
	Price       *float64           `json:"price"`
}

func (req itemRequest) edit() (documents.ItemEdit, bool) {
	var edits []documents.ItemEdit
	if req.Description != nil {
		edits = append(edits, documents.SetDescription{Value: *req.Description})
	}
	if req.Quantity != nil {
		edits = append(edits, documents.SetQuantity{Value: *req.Quantity})
	}
	if req.Price != nil {
		edits = append(edits, documents.SetPrice{Value: *req.Price})
	}
	if len(edits) != 1 {
		return nil, false
	}
	return edits[0], true
}

// Items applies a line item operation and returns the draft with its running total.
func (h *DocumentHandler) Items(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	doc := req.Document
	switch req.Op {
	case "add":
		doc = documents.AddItem(doc)
	case "remove":
		doc = documents.RemoveItem(doc, req.ItemID)
	case "update":
		edit, ok := req.edit()
		if !ok {
			httpx.JSONError(w, http.StatusBadRequest, "bad_request", "exactly one of description, quantity or price is required")
			return
		}
		var err error
		if doc, err = documents.UpdateItem(doc, req.ItemID, edit); err != nil {
			writeError(w, r, err)
			return
		}
	default:
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "unknown op "+strconv.Quote(req.Op))
		return
	}
	doc.Total = documents.ComputeTotal(doc.Items)
	httpx.JSON(w, http.StatusOK, doc)
}

// Delete removes a document and its items. Requires ?confirm=1.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.editor().DeleteDocument(r.Context(), r.PathValue("id"), confirmed(r)); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"banner": notice.Success("Document deleted", h.now())})
}

func (h *DocumentHandler) load(r *http.Request) (documents.Document, error) {
	userID, _ := auth.UserIDFromContext(r.Context())
	return h.editor().Load(r.Context(), userID, r.PathValue("id"))
}

// PDF streams the rendered document. With ?archive=1 a copy is also uploaded;
// the object location comes back in X-Archive-Location.
func (h *DocumentHandler) PDF(w http.ResponseWriter, r *http.Request) {
	doc, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := render.PDF(doc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if archiveRequested(r) {
		key := archive.DocumentKey(doc.UserID, doc.Number, "pdf", h.now())
		loc, err := h.archive.Put(r.Context(), key, out, "application/pdf")
		switch {
		case errors.Is(err, archive.ErrNotConfigured):
			w.Header().Set("X-Archive-Error", "not configured")
		case err != nil:
			slog.ErrorContext(r.Context(), "archive document", "document_id", doc.ID, "error", err)
			w.Header().Set("X-Archive-Error", "upload failed")
		default:
			w.Header().Set("X-Archive-Location", loc)
		}
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+render.FileName(doc)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	_, _ = w.Write(out)
}

func archiveRequested(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("archive"))
	return ok
}

// Print renders the HTML print view.
func (h *DocumentHandler) Print(w http.ResponseWriter, r *http.Request) {
	doc, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := render.Print(w, r, doc); err != nil {
		writeError(w, r, err)
	}
}
