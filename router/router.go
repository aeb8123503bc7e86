package router

import (
	"sharelink/internal/handler"
	"sharelink/utils"

	"github.com/gin-gonic/gin"
)

// InitRouter builds API routes.
func InitRouter(h *handler.ShareHandler, verifier utils.IdentityVerifier) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery(), utils.RequestID(), utils.GinZapLogger(), utils.CORSMiddleware())

	api := r.Group("/api")
	{
		api.GET("/health", handler.Health)

		api.POST("/upload", utils.AuthMiddleware(verifier, false), h.Upload)
		api.GET("/info/:shortCode", h.Info)
		api.POST("/:shortCode/download", h.Download)
		api.GET("/download/:shortCode", h.DownloadRedirect)
		api.GET("/:shortCode/qr", h.QRCode)

		auth := api.Group("")
		auth.Use(utils.AuthMiddleware(verifier, true))
		{
			auth.GET("/my-uploads", h.MyUploads)
			auth.DELETE("/link/:shortCode", h.Delete)
		}
	}
	return r
}
