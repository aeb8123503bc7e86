package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"sharelink/config"
	"sharelink/internal/dto"
	"sharelink/internal/service"
	"sharelink/model"
	"sharelink/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipartOverhead is the slack allowed on top of the file payload for form framing.
const multipartOverhead = 1 << 20

// ShareHandler serves the share link API.
type ShareHandler struct {
	cfg *config.Config
	svc *service.ShareService
	qr  utils.QRRenderer
}

func NewShareHandler(cfg *config.Config, svc *service.ShareService, qr utils.QRRenderer) *ShareHandler {
	return &ShareHandler{cfg: cfg, svc: svc, qr: qr}
}

// Upload accepts multipart field "files" plus optional password and expiryHours.
func (h *ShareHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxTotalBytes+multipartOverhead)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Fail(c, http.StatusBadRequest, fmt.Sprintf("total upload size must not exceed %d MB", h.cfg.MaxTotalBytes/(1024*1024)))
			return
		}
		utils.Fail(c, http.StatusBadRequest, "invalid multipart form")
		return
	}

	req := service.UploadRequest{
		Password: c.PostForm("password"),
		Owner:    model.Anonymous(),
	}
	if raw := strings.TrimSpace(c.PostForm("expiryHours")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			utils.Fail(c, http.StatusBadRequest, "expiryHours must be an integer")
			return
		}
		req.ExpiryHours = &hours
	}
	if username, ok := utils.CurrentUser(c); ok {
		req.Owner = model.Owned(username)
	}
	for _, fh := range form.File["files"] {
		req.Files = append(req.Files, uploadFileFrom(fh))
	}

	resp, err := h.svc.Upload(c.Request.Context(), req)
	if err != nil {
		failWithError(c, err)
		return
	}
	utils.Success(c, resp)
}

func uploadFileFrom(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Info returns link metadata. Protected links need ?password=.
func (h *ShareHandler) Info(c *gin.Context) {
	var q dto.InfoQuery
	_ = c.ShouldBindQuery(&q)
	info, err := h.svc.Info(c.Request.Context(), c.Param("shortCode"), q.Password)
	if err != nil {
		failAccess(c, err)
		return
	}
	utils.Success(c, info)
}

// MyUploads lists the caller's links.
func (h *ShareHandler) MyUploads(c *gin.Context) {
	username, _ := utils.CurrentUser(c)
	uploads, err := h.svc.ListMine(c.Request.Context(), username)
	if err != nil {
		failWithError(c, err)
		return
	}
	utils.Success(c, uploads)
}

// Delete removes a link owned by the caller.
func (h *ShareHandler) Delete(c *gin.Context) {
	username, _ := utils.CurrentUser(c)
	if err := h.svc.Delete(c.Request.Context(), c.Param("shortCode"), username); err != nil {
		failWithError(c, err)
		return
	}
	utils.Success(c, gin.H{"message": "link and associated files deleted"})
}

// Download takes the password as JSON. One file yields {"downloadUrl"}, several a zip stream.
func (h *ShareHandler) Download(c *gin.Context) {
	var req dto.DownloadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.Fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	link, err := h.svc.Authorize(c.Request.Context(), c.Param("shortCode"), req.Password)
	if err != nil {
		failAccess(c, err)
		return
	}
	d := h.svc.Dispatcher()
	if d.IsArchive(link) {
		h.streamArchive(c, link)
		return
	}
	u, err := d.PresignedURL(c.Request.Context(), link)
	if err != nil {
		failWithError(c, err)
		return
	}
	utils.Success(c, dto.DownloadURLResponse{DownloadURL: u})
}

// DownloadRedirect takes the password as a query parameter and redirects to the blob for a
// single file.
func (h *ShareHandler) DownloadRedirect(c *gin.Context) {
	link, err := h.svc.Authorize(c.Request.Context(), c.Param("shortCode"), c.Query("password"))
	if err != nil {
		failAccess(c, err)
		return
	}
	d := h.svc.Dispatcher()
	if d.IsArchive(link) {
		h.streamArchive(c, link)
		return
	}
	u, err := d.PresignedURL(c.Request.Context(), link)
	if err != nil {
		failWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

func (h *ShareHandler) streamArchive(c *gin.Context, link *model.ShareLink) {
	d := h.svc.Dispatcher()
	name := utils.SanitizeHeaderFilename(d.ArchiveName(link))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	c.Header("Content-Type", "application/zip")

	err := d.StreamArchive(c.Request.Context(), link, c.Writer)
	if err == nil {
		return
	}
	if !c.Writer.Written() {
		c.Header("Content-Disposition", "")
		c.Header("Content-Type", "")
		failWithError(c, err)
		return
	}
	// Headers are gone; all that is left is to cut the stream short.
	_ = c.Error(err)
	utils.Log.Warn("archive stream aborted", zap.String("code", link.ShortCode), zap.Error(err))
	c.Abort()
}

// QRCode renders the public link as a PNG, or base64 JSON with ?format=base64.
func (h *ShareHandler) QRCode(c *gin.Context) {
	code := c.Param("shortCode")
	if !model.ValidShortCode(code) {
		utils.Fail(c, http.StatusNotFound, "link not found")
		return
	}
	png, err := h.qr.RenderPNG(h.cfg.ShareURL(code))
	if err != nil {
		failWithError(c, err)
		return
	}
	var q dto.QRQuery
	_ = c.ShouldBindQuery(&q)
	if strings.EqualFold(q.Format, "base64") {
		utils.Success(c, gin.H{"qr": utils.EncodeBase64(png)})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func Health(c *gin.Context) {
	utils.Success(c, gin.H{"status": "ok"})
}
