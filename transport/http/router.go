package http

import (
	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/custodia/service"
)

// SetupRouter sets up the Gin router. The nonce and login endpoints are
// public; everything else requires a bearer credential.
func SetupRouter(auth *service.AuthService, wallets *service.WalletService, transfers *service.TransferService) *gin.Engine {
	router := gin.Default()

	authHandlers := NewAuthHandlers(auth)
	walletHandlers := NewWalletHandlers(wallets)
	transferHandlers := NewTransferHandlers(transfers)

	// Login protocol
	router.GET("/api/nonce", authHandlers.Nonce)
	router.POST("/api/login", authHandlers.Login)

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(auth))
	{
		api.GET("/me", authHandlers.Me)

		wallet := api.Group("/wallets")
		{
			wallet.GET("", walletHandlers.List)
			wallet.POST("/generate", walletHandlers.Generate)
			wallet.POST("/import", walletHandlers.Import)
			wallet.POST("/export", walletHandlers.Export)
			wallet.POST("/balances", walletHandlers.Balances)
			wallet.PATCH("/:id", walletHandlers.Rename)
			wallet.DELETE("", walletHandlers.Delete)
		}

		jobs := api.Group("/jobs")
		{
			jobs.GET("", walletHandlers.Jobs)
			jobs.GET("/:id", walletHandlers.Job)
		}

		transfer := api.Group("/transfer")
		{
			transfer.GET("/validate-address", transferHandlers.ValidateAddress)
			transfer.GET("/fee", transferHandlers.Fee)
			transfer.POST("/prepare", transferHandlers.Prepare)
			transfer.POST("/execute", transferHandlers.Execute)
			transfer.POST("/confirm", transferHandlers.Confirm)
			transfer.POST("/batch-prepare", transferHandlers.BatchPrepare)
			transfer.POST("/batch-execute", transferHandlers.BatchExecute)
			transfer.POST("/batch-confirm", transferHandlers.BatchConfirm)
			transfer.GET("/records", transferHandlers.Records)
			transfer.GET("/status/:signature", transferHandlers.Status)
			transfer.GET("/batch/:batchId", transferHandlers.Batch)
		}
	}

	return router
}
