package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/custodia-labs/custodia/internal/sol"
	"github.com/custodia-labs/custodia/service"
)

// TransferHandlers contains HTTP handlers for the transfer surface. Request
// amounts are SOL decimals; everything downstream is lamports.
type TransferHandlers struct {
	transfers *service.TransferService
}

// NewTransferHandlers creates new transfer handlers.
func NewTransferHandlers(transfers *service.TransferService) *TransferHandlers {
	return &TransferHandlers{transfers: transfers}
}

// ValidateAddress reports whether the query address is structurally valid.
func (h *TransferHandlers) ValidateAddress(c *gin.Context) {
	address := c.Query("address")
	c.JSON(http.StatusOK, gin.H{
		"address": address,
		"valid":   sol.ValidAddress(address),
	})
}

// Fee returns the current per-signature fee estimate.
func (h *TransferHandlers) Fee(c *gin.Context) {
	fee := h.transfers.Planner().Fee(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"feeLamports": fee, "fee": sol.ToSOL(fee)})
}

type singleTransferRequest struct {
	FromAddress string          `json:"fromAddress" binding:"required"`
	ToAddress   string          `json:"toAddress" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Memo        string          `json:"memo"`
}

// Prepare checks a single transfer's affordability without creating anything.
func (h *TransferHandlers) Prepare(c *gin.Context) {
	var req singleTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	lamports, err := sol.ToLamports(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.transfers.Planner().PrepareSingle(c.Request.Context(), owner(c), req.FromAddress, req.ToAddress, lamports, req.Memo)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, planView(plan))
}

// Execute prepares a transfer, persists the pending record, and returns the
// unsigned instruction for the client to sign.
func (h *TransferHandlers) Execute(c *gin.Context) {
	var req singleTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	lamports, err := sol.ToLamports(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.transfers.ExecuteSingle(c.Request.Context(), owner(c), req.FromAddress, req.ToAddress, lamports, req.Memo)
	if err != nil {
		renderError(c, err)
		return
	}

	payload := gin.H{
		"record":      recordView(*result.Record),
		"instruction": result.Instruction,
	}
	if result.BlockhashOK {
		payload["recentBlockhash"] = result.Blockhash
	}
	c.JSON(http.StatusCreated, payload)
}

// Confirm stores the client-reported signature on a pending record.
func (h *TransferHandlers) Confirm(c *gin.Context) {
	var req struct {
		RecordID  string `json:"recordId" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	id, err := uuid.Parse(req.RecordID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record id"})
		return
	}

	rec, err := h.transfers.Confirm(c.Request.Context(), owner(c), id, req.Signature)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordView(*rec))
}

type batchTransferRequest struct {
	WalletIDs       []string        `json:"walletIds" binding:"required"`
	ToAddress       string          `json:"toAddress" binding:"required"`
	AmountPerWallet decimal.Decimal `json:"amountPerWallet" binding:"required"`
	Memo            string          `json:"memo"`
}

func (r *batchTransferRequest) parse() ([]uuid.UUID, uint64, error) {
	ids, ok := parseWalletIDs(r.WalletIDs)
	if !ok {
		return nil, 0, errors.New("invalid wallet id")
	}
	lamports, err := sol.ToLamports(r.AmountPerWallet)
	if err != nil {
		return nil, 0, err
	}
	return ids, lamports, nil
}

// BatchPrepare reports per-wallet affordability without creating anything.
func (h *TransferHandlers) BatchPrepare(c *gin.Context) {
	var req batchTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	ids, lamports, err := req.parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.transfers.Planner().PrepareBatch(c.Request.Context(), owner(c), ids, req.ToAddress, lamports, req.Memo)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchPlanView(plan))
}

// BatchExecute creates the batch task plus one pending record and unsigned
// instruction per affordable wallet.
func (h *TransferHandlers) BatchExecute(c *gin.Context) {
	var req batchTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	ids, lamports, err := req.parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.transfers.ExecuteBatch(c.Request.Context(), owner(c), ids, req.ToAddress, lamports, req.Memo)
	if err != nil {
		renderError(c, err)
		return
	}

	items := make([]gin.H, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, gin.H{
			"recordId":    item.RecordID,
			"walletId":    item.WalletID,
			"fromAddress": item.FromAddress,
			"instruction": item.Instruction,
		})
	}
	payload := gin.H{
		"batch": batchTaskView(result.Task),
		"plan":  batchPlanView(result.Plan),
		"items": items,
	}
	if result.BlockhashOK {
		payload["recentBlockhash"] = result.Blockhash
	}
	c.JSON(http.StatusCreated, payload)
}

// BatchConfirm applies a list of per-record signing outcomes.
func (h *TransferHandlers) BatchConfirm(c *gin.Context) {
	var req struct {
		BatchID  string `json:"batchId" binding:"required"`
		Outcomes []struct {
			RecordID  string `json:"recordId" binding:"required"`
			Signature string `json:"signature"`
			Error     string `json:"error"`
		} `json:"outcomes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	outcomes := make([]service.BatchOutcome, 0, len(req.Outcomes))
	for _, o := range req.Outcomes {
		id, err := uuid.Parse(o.RecordID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record id"})
			return
		}
		outcomes = append(outcomes, service.BatchOutcome{RecordID: id, Signature: o.Signature, Error: o.Error})
	}

	task, err := h.transfers.ConfirmBatch(c.Request.Context(), owner(c), req.BatchID, outcomes)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchTaskView(task))
}

// Records lists the caller's transfer records, newest first.
func (h *TransferHandlers) Records(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	records, err := h.transfers.Records(c.Request.Context(), owner(c), limit)
	if err != nil {
		renderError(c, err)
		return
	}

	views := make([]gin.H, 0, len(records))
	for _, r := range records {
		views = append(views, recordView(r))
	}
	c.JSON(http.StatusOK, gin.H{"records": views})
}

// Status reconciles a signature against the chain and returns the updated
// record together with the raw status.
func (h *TransferHandlers) Status(c *gin.Context) {
	rec, status, err := h.transfers.Reconcile(c.Request.Context(), owner(c), c.Param("signature"))
	if err != nil {
		renderError(c, err)
		return
	}

	view := gin.H{"record": recordView(*rec), "confirmed": status.Confirmed}
	if status.Err != "" {
		view["chainError"] = status.Err
	}
	c.JSON(http.StatusOK, view)
}

// Batch returns the aggregate plus child-record view of one batch.
func (h *TransferHandlers) Batch(c *gin.Context) {
	view, err := h.transfers.Batch(c.Request.Context(), owner(c), c.Param("batchId"))
	if err != nil {
		renderError(c, err)
		return
	}

	records := make([]gin.H, 0, len(view.Records))
	for _, r := range view.Records {
		records = append(records, recordView(r))
	}
	c.JSON(http.StatusOK, gin.H{
		"batch":   batchTaskView(view.Task),
		"records": records,
	})
}
