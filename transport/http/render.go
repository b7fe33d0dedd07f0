package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/internal/sol"
	"github.com/custodia-labs/custodia/service"
)

// renderError maps service failures onto HTTP outcomes. Rejections are
// expected results and render as 422 with their reason; not-found sentinels
// render as 404; everything else is a fault.
func renderError(c *gin.Context, err error) {
	var rej *service.Rejection
	if errors.As(err, &rej) {
		payload := gin.H{"error": string(rej.Reason)}
		if rej.Reason == service.RejectInsufficientFunds {
			payload["shortfallLamports"] = rej.Shortfall
			payload["shortfall"] = sol.ToSOL(rej.Shortfall)
		}
		c.JSON(http.StatusUnprocessableEntity, payload)
		return
	}

	switch {
	case errors.Is(err, core.ErrWalletNotFound),
		errors.Is(err, core.ErrRecordNotFound),
		errors.Is(err, core.ErrBatchNotFound),
		errors.Is(err, core.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func walletView(w core.Wallet) gin.H {
	view := gin.H{
		"id":        w.ID,
		"publicKey": w.PublicKey,
		"name":      w.Name,
		"source":    w.Source,
		"createdAt": w.CreatedAt,
	}
	if w.Balance != nil {
		view["balanceLamports"] = *w.Balance
		view["balance"] = sol.ToSOL(*w.Balance)
		view["balanceCheckedAt"] = w.CheckedAt
	}
	return view
}

func recordView(r core.TransferRecord) gin.H {
	view := gin.H{
		"id":             r.ID,
		"fromAddress":    r.FromAddress,
		"toAddress":      r.ToAddress,
		"amountLamports": r.Amount,
		"amount":         sol.ToSOL(r.Amount),
		"feeLamports":    r.Fee,
		"fee":            sol.ToSOL(r.Fee),
		"status":         r.Status,
		"kind":           r.Kind,
		"createdAt":      r.CreatedAt,
	}
	if r.Memo != "" {
		view["memo"] = r.Memo
	}
	if r.Signature != "" {
		view["signature"] = r.Signature
	}
	if r.ErrorMessage != "" {
		view["error"] = r.ErrorMessage
	}
	if r.BlockHeight != nil {
		view["blockHeight"] = *r.BlockHeight
	}
	if r.BatchID != nil {
		view["batchId"] = *r.BatchID
	}
	if r.ConfirmedAt != nil {
		view["confirmedAt"] = r.ConfirmedAt
	}
	return view
}

func batchTaskView(t *core.BatchTask) gin.H {
	view := gin.H{
		"id":                      t.ID,
		"toAddress":               t.ToAddress,
		"amountPerWallet":         sol.ToSOL(t.AmountPerWallet),
		"amountPerWalletLamports": t.AmountPerWallet,
		"totalWallets":            t.TotalWallets,
		"successful":              t.Successful,
		"failed":                  t.Failed,
		"totalAmount":             sol.ToSOL(t.TotalAmount),
		"totalFees":               sol.ToSOL(t.TotalFees),
		"status":                  t.Status,
		"createdAt":               t.CreatedAt,
	}
	if t.Memo != "" {
		view["memo"] = t.Memo
	}
	if t.ErrorMessage != "" {
		view["error"] = t.ErrorMessage
	}
	if t.CompletedAt != nil {
		view["completedAt"] = t.CompletedAt
	}
	return view
}

func planView(p *service.Plan) gin.H {
	return gin.H{
		"fromAddress":      p.FromAddress,
		"toAddress":        p.ToAddress,
		"amount":           sol.ToSOL(p.Amount),
		"amountLamports":   p.Amount,
		"fee":              sol.ToSOL(p.Fee),
		"feeLamports":      p.Fee,
		"totalRequired":    sol.ToSOL(p.TotalRequired),
		"currentBalance":   sol.ToSOL(p.CurrentBalance),
		"remainingBalance": sol.ToSOL(p.RemainingBalance),
	}
}

func batchPlanView(p *service.BatchPlan) gin.H {
	wallets := make([]gin.H, 0, len(p.Wallets))
	for _, w := range p.Wallets {
		entry := gin.H{
			"walletId":   w.WalletID,
			"address":    w.Address,
			"name":       w.Name,
			"sufficient": w.Sufficient,
		}
		if w.Balance != nil {
			entry["balanceLamports"] = *w.Balance
			entry["balance"] = sol.ToSOL(*w.Balance)
		}
		if !w.Sufficient && w.Shortfall > 0 {
			entry["shortfallLamports"] = w.Shortfall
			entry["shortfall"] = sol.ToSOL(w.Shortfall)
		}
		wallets = append(wallets, entry)
	}
	return gin.H{
		"toAddress":       p.ToAddress,
		"amountPerWallet": sol.ToSOL(p.AmountPerWallet),
		"fee":             sol.ToSOL(p.Fee),
		"feeLamports":     p.Fee,
		"wallets":         wallets,
		"sufficient":      p.Sufficient,
		"insufficient":    p.Insufficient,
		"totalAmount":     sol.ToSOL(p.TotalAmount),
		"totalFees":       sol.ToSOL(p.TotalFees),
	}
}

func jobView(j core.Job) gin.H {
	return gin.H{
		"id":            j.ID,
		"count":         j.Count,
		"archiveStatus": j.ArchiveStatus,
		"archivePath":   j.ArchivePath,
		"createdAt":     j.CreatedAt,
	}
}
