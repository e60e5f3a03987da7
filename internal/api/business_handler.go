package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"adsmith/internal/database"
	"adsmith/internal/errcode"
)

// objectStore 是 API 层对对象存储的最小依赖，测试里用内存假件替换。
type objectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// BusinessHandler 维护商家档案与 logo 上传。
type BusinessHandler struct {
	db        *gorm.DB
	storage   objectStore
	logger    *slog.Logger
	clamdAddr string
}

// NewBusinessHandler 构造 BusinessHandler。
func NewBusinessHandler(db *gorm.DB, storageClient objectStore, logger *slog.Logger, clamdAddr string) *BusinessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusinessHandler{
		db:        db,
		storage:   storageClient,
		logger:    logger,
		clamdAddr: clamdAddr,
	}
}

type createBusinessRequest struct {
	Name           string   `json:"name" binding:"required"`
	TypeOfBusiness string   `json:"type_of_business"`
	Description    string   `json:"description"`
	BrandColors    []string `json:"brand_colors"`
	BrandFonts     string   `json:"brand_fonts"`
	ToneWords      []string `json:"tone_words"`
}

type businessResponse struct {
	ID             uint     `json:"id"`
	Name           string   `json:"name"`
	TypeOfBusiness string   `json:"type_of_business,omitempty"`
	Description    string   `json:"description,omitempty"`
	BrandColors    []string `json:"brand_colors,omitempty"`
	BrandFonts     string   `json:"brand_fonts,omitempty"`
	ToneWords      []string `json:"tone_words,omitempty"`
	LogoURL        string   `json:"logo_url,omitempty"`
}

// CreateBusiness 创建商家档案。
func (h *BusinessHandler) CreateBusiness(c *gin.Context) {
	var req createBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, err.Error())
		return
	}

	business := database.Business{
		Name:           req.Name,
		TypeOfBusiness: req.TypeOfBusiness,
		Description:    req.Description,
		BrandFonts:     req.BrandFonts,
	}
	if len(req.BrandColors) > 0 {
		raw, err := json.Marshal(req.BrandColors)
		if err != nil {
			Internal(c, "failed to encode brand colors")
			return
		}
		business.BrandColors = datatypes.JSON(raw)
	}
	if len(req.ToneWords) > 0 {
		raw, err := json.Marshal(req.ToneWords)
		if err != nil {
			Internal(c, "failed to encode tone words")
			return
		}
		business.ToneWords = datatypes.JSON(raw)
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&business).Error; err != nil {
		h.logger.Error("create business failed", slog.Any("error", err))
		Internal(c, "failed to create business")
		return
	}

	c.JSON(http.StatusCreated, h.newBusinessResponse(c.Request.Context(), business))
}

// UploadLogo 上传商家 logo，配置了 clamd 时先做病毒扫描。
// 旧 logo 对象在替换成功后清理。
func (h *BusinessHandler) UploadLogo(c *gin.Context) {
	businessID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, "invalid business id")
		return
	}

	var business database.Business
	if err := h.db.WithContext(c.Request.Context()).First(&business, businessID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "business not found")
			return
		}
		Internal(c, "failed to query business")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, "missing file")
		return
	}

	if h.clamdAddr != "" {
		if ok, err := h.scanUpload(file); err != nil {
			h.logger.Error("scan logo failed", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		} else if !ok {
			ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, "malicious file detected")
			return
		}
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer fileReader.Close()

	objectKey := fmt.Sprintf("business-logos/%d/%s.png", business.ID, uuid.NewString())
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx := c.Request.Context()
	if _, err := h.storage.UploadFile(ctx, objectKey, fileReader, file.Size, contentType); err != nil {
		h.logger.Error("upload logo failed", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}

	oldKey := business.LogoObjectKey
	if err := h.db.WithContext(ctx).Model(&business).Update("logo_object_key", objectKey).Error; err != nil {
		Internal(c, "failed to save logo reference")
		return
	}
	if oldKey != "" && oldKey != objectKey {
		if err := h.storage.DeleteObject(ctx, oldKey); err != nil {
			h.logger.Warn("purge old logo failed", slog.String("object_key", oldKey), slog.Any("error", err))
		}
	}

	previewURL, err := h.storage.GeneratePresignedURL(ctx, objectKey, 15*time.Minute)
	if err != nil {
		previewURL = ""
	}
	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey, "previewUrl": previewURL})
}

func (h *BusinessHandler) scanUpload(file *multipart.FileHeader) (bool, error) {
	fileReader, err := file.Open()
	if err != nil {
		return false, err
	}

	clamdClient := clamd.NewClamd(h.clamdAddr)
	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(fileReader, abortChan)
	fileReader.Close()
	if err != nil {
		return false, err
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return false, nil
		}
	}
	return true, nil
}

func (h *BusinessHandler) newBusinessResponse(ctx context.Context, business database.Business) businessResponse {
	resp := businessResponse{
		ID:             business.ID,
		Name:           business.Name,
		TypeOfBusiness: business.TypeOfBusiness,
		Description:    business.Description,
		BrandFonts:     business.BrandFonts,
	}
	if len(business.BrandColors) > 0 {
		_ = json.Unmarshal(business.BrandColors, &resp.BrandColors)
	}
	if len(business.ToneWords) > 0 {
		_ = json.Unmarshal(business.ToneWords, &resp.ToneWords)
	}
	if business.LogoObjectKey != "" {
		if url, err := h.storage.GeneratePresignedURL(ctx, business.LogoObjectKey, 15*time.Minute); err == nil {
			resp.LogoURL = url
		}
	}
	return resp
}
