package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/custodia-labs/custodia/internal/sol"
	"github.com/custodia-labs/custodia/service"
)

// WalletHandlers contains HTTP handlers for custodial wallet management.
type WalletHandlers struct {
	wallets *service.WalletService
}

// NewWalletHandlers creates new wallet handlers.
func NewWalletHandlers(wallets *service.WalletService) *WalletHandlers {
	return &WalletHandlers{wallets: wallets}
}

func parseWalletIDs(raw []string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// Generate creates a batch of custodial keypairs and starts the archive job.
func (h *WalletHandlers) Generate(c *gin.Context) {
	var req struct {
		Count      int    `json:"count" binding:"required"`
		NamePrefix string `json:"namePrefix"`
		MinDelayMs int    `json:"minDelayMs"`
		MaxDelayMs int    `json:"maxDelayMs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	job, wallets, err := h.wallets.Generate(c.Request.Context(), owner(c), service.GenerateParams{
		Count:      req.Count,
		NamePrefix: req.NamePrefix,
		MinDelayMs: req.MinDelayMs,
		MaxDelayMs: req.MaxDelayMs,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(wallets))
	for _, w := range wallets {
		views = append(views, walletView(w))
	}
	c.JSON(http.StatusCreated, gin.H{"job": jobView(*job), "wallets": views})
}

// Import accepts solana-keygen JSON in any of its common shapes and persists
// the keypairs under the caller.
func (h *WalletHandlers) Import(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	entries, err := service.ParseImportPayload(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, skipped, err := h.wallets.Import(c.Request.Context(), owner(c), entries)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(created))
	for _, w := range created {
		views = append(views, walletView(w))
	}
	c.JSON(http.StatusCreated, gin.H{"wallets": views, "skipped": skipped})
}

// Export returns the selected wallets with their secret material in
// solana-keygen form. Only reachable behind the auth middleware.
func (h *WalletHandlers) Export(c *gin.Context) {
	var req struct {
		WalletIDs []string `json:"walletIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	ids, ok := parseWalletIDs(req.WalletIDs)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet id"})
		return
	}

	exported, err := h.wallets.Export(c.Request.Context(), owner(c), ids)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": exported})
}

// List returns the caller's wallets with cached balances.
func (h *WalletHandlers) List(c *gin.Context) {
	wallets, err := h.wallets.List(c.Request.Context(), owner(c))
	if err != nil {
		renderError(c, err)
		return
	}

	views := make([]gin.H, 0, len(wallets))
	for _, w := range wallets {
		views = append(views, walletView(w))
	}
	c.JSON(http.StatusOK, gin.H{"wallets": views})
}

// Balances refreshes the selected wallets' balances against the ledger.
func (h *WalletHandlers) Balances(c *gin.Context) {
	var req struct {
		WalletIDs []string `json:"walletIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	ids, ok := parseWalletIDs(req.WalletIDs)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet id"})
		return
	}

	entries, err := h.wallets.RefreshBalances(c.Request.Context(), owner(c), ids)
	if err != nil {
		renderError(c, err)
		return
	}

	views := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		view := gin.H{"walletId": e.WalletID, "address": e.Address, "known": e.Known}
		if e.Known {
			view["balanceLamports"] = e.Lamports
			view["balance"] = sol.ToSOL(e.Lamports)
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"balances": views})
}

// Rename updates a wallet's display name.
func (h *WalletHandlers) Rename(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet id"})
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	w, err := h.wallets.Rename(c.Request.Context(), owner(c), id, req.Name)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, walletView(*w))
}

// Delete removes the selected wallets.
func (h *WalletHandlers) Delete(c *gin.Context) {
	var req struct {
		WalletIDs []string `json:"walletIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	ids, ok := parseWalletIDs(req.WalletIDs)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet id"})
		return
	}

	deleted, err := h.wallets.Delete(c.Request.Context(), owner(c), ids)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// Jobs lists the caller's generation jobs.
func (h *WalletHandlers) Jobs(c *gin.Context) {
	jobs, err := h.wallets.Jobs(c.Request.Context(), owner(c))
	if err != nil {
		renderError(c, err)
		return
	}

	views := make([]gin.H, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, jobView(j))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": views})
}

// Job returns one generation job with its archive status.
func (h *WalletHandlers) Job(c *gin.Context) {
	job, err := h.wallets.Job(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobView(*job))
}
