package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"adsmith/internal/database"
	"adsmith/internal/layout"
	"adsmith/internal/tasks"
)

type fakeStorage struct {
	uploaded map[string][]byte
	deleted  []string
	prefixes []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

func (s *fakeStorage) DeletePrefix(_ context.Context, prefix string) error {
	s.prefixes = append(s.prefixes, prefix)
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	acquired []string
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) SetNX(ctx context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if l.held[key] {
		cmd.SetVal(false)
		return cmd
	}
	l.held[key] = true
	l.acquired = append(l.acquired, key)
	cmd.SetVal(true)
	return cmd
}

func (l *fakeLocker) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(l.held, key)
		l.released = append(l.released, key)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

type fakeEnqueuer struct {
	enqueued []*asynq.Task
	err      error
}

func (e *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.enqueued = append(e.enqueued, task)
	return &asynq.TaskInfo{}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&database.Business{},
		&database.Campaign{},
		&database.BackgroundVariant{},
		&database.GeneratedAd{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCampaign(t *testing.T, db *gorm.DB) *database.Campaign {
	t.Helper()
	business := database.Business{Name: "Bean There"}
	if err := db.Create(&business).Error; err != nil {
		t.Fatalf("seed business: %v", err)
	}
	campaign := database.Campaign{
		BusinessID: business.ID,
		Name:       "Autumn blend",
		Brief:      "Launch the autumn espresso blend",
		AdSizes:    datatypes.JSON(`["300x250"]`),
		Status:     database.CampaignStatusDraft,
	}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	return &campaign
}

func seedAd(t *testing.T, db *gorm.DB, campaignID uint, locked bool) *database.GeneratedAd {
	t.Helper()
	positions, err := json.Marshal(layout.DefaultPositions("300x250"))
	if err != nil {
		t.Fatalf("marshal positions: %v", err)
	}
	ad := database.GeneratedAd{
		CampaignID:          campaignID,
		VariantID:           "variant_1",
		AdSize:              "300x250",
		Headline:            "Fall for Espresso",
		ElementPositions:    datatypes.JSON(positions),
		BackgroundObjectKey: "backgrounds/1/square.png",
		IsLocked:            locked,
		Status:              database.AdStatusCompleted,
	}
	if err := db.Create(&ad).Error; err != nil {
		t.Fatalf("seed ad: %v", err)
	}
	return &ad
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newCampaignRouter(h *CampaignHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/campaigns", h.CreateCampaign)
	router.POST("/v1/campaigns/:id/generate", h.Generate)
	router.POST("/v1/campaigns/:id/regenerate-background", h.RegenerateBackground)
	router.GET("/v1/campaigns/:id/ads", h.ListAds)
	router.DELETE("/v1/campaigns/:id/ads", h.DeleteAds)
	return router
}

func newAdRouter(h *AdHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.PATCH("/v1/ads/:id/positions", h.UpdatePositions)
	router.POST("/v1/ads/:id/render", h.Render)
	router.POST("/v1/ads/:id/unlock", h.Unlock)
	return router
}

func TestGenerate_AcquiresLockAndEnqueues(t *testing.T) {
	db := newTestDB(t)
	campaign := seedCampaign(t, db)
	locker := newFakeLocker()
	enqueuer := &fakeEnqueuer{}
	h := NewCampaignHandler(db, enqueuer, locker, newFakeStorage(), nil)
	router := newCampaignRouter(h)

	w := performJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/campaigns/%d/generate", campaign.ID), nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}

	if len(enqueuer.enqueued) != 1 {
		t.Fatalf("enqueued tasks = %d, want 1", len(enqueuer.enqueued))
	}
	if enqueuer.enqueued[0].Type() != tasks.TypeAdGenerate {
		t.Fatalf("task type = %q", enqueuer.enqueued[0].Type())
	}
	if !locker.held[tasks.GenerationLockKey(campaign.ID)] {
		t.Fatal("generation lock not held after enqueue")
	}

	var resp struct {
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := fmt.Sprintf("ad_generation_%d", campaign.ID)
	if resp.Channel != want {
		t.Fatalf("channel = %q, want %q", resp.Channel, want)
	}
}

func TestGenerate_ConflictWhileRunInFlight(t *testing.T) {
	db := newTestDB(t)
	campaign := seedCampaign(t, db)
	locker := newFakeLocker()
	locker.held[tasks.GenerationLockKey(campaign.ID)] = true
	enqueuer := &fakeEnqueuer{}
	h := NewCampaignHandler(db, enqueuer, locker, newFakeStorage(), nil)
	router := newCampaignRouter(h)

	w := performJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/campaigns/%d/generate", campaign.ID), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
	if len(enqueuer.enqueued) != 0 {
		t.Fatal("task enqueued despite lock conflict")
	}
}

func TestGenerate_ReleasesLockOnEnqueueFailure(t *testing.T) {
	db := newTestDB(t)
	campaign := seedCampaign(t, db)
	locker := newFakeLocker()
	enqueuer := &fakeEnqueuer{err: fmt.Errorf("queue unavailable")}
	h := NewCampaignHandler(db, enqueuer, locker, newFakeStorage(), nil)
	router := newCampaignRouter(h)

	w := performJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/campaigns/%d/generate", campaign.ID), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if locker.held[tasks.GenerationLockKey(campaign.ID)] {
		t.Fatal("lock still held after enqueue failure")
	}
}

func TestCreateCampaign_RejectsMalformedAdSize(t *testing.T) {
	db := newTestDB(t)
	business := database.Business{Name: "Bean There"}
	if err := db.Create(&business).Error; err != nil {
		t.Fatalf("seed business: %v", err)
	}
	h := NewCampaignHandler(db, &fakeEnqueuer{}, newFakeLocker(), newFakeStorage(), nil)
	router := newCampaignRouter(h)

	w := performJSON(t, router, http.MethodPost, "/v1/campaigns", map[string]any{
		"business_id": business.ID,
		"name":        "Autumn blend",
		"brief":       "Launch the autumn espresso blend",
		"ad_sizes":    []string{"300x250", "banner"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestDeleteAds_ResetsCampaign(t *testing.T) {
	db := newTestDB(t)
	campaign := seedCampaign(t, db)
	if err := db.Model(campaign).Update("status", database.CampaignStatusReady).Error; err != nil {
		t.Fatalf("set status: %v", err)
	}
	seedAd(t, db, campaign.ID, false)
	storage := newFakeStorage()
	h := NewCampaignHandler(db, &fakeEnqueuer{}, newFakeLocker(), storage, nil)
	router := newCampaignRouter(h)

	w := performJSON(t, router, http.MethodDelete, fmt.Sprintf("/v1/campaigns/%d/ads", campaign.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", w.Code, w.Body.String())
	}

	var count int64
	if err := db.Model(&database.GeneratedAd{}).Where("campaign_id = ?", campaign.ID).Count(&count).Error; err != nil {
		t.Fatalf("count ads: %v", err)
	}
	if count != 0 {
		t.Fatalf("ads remaining = %d", count)
	}

	var reloaded database.Campaign
	if err := db.First(&reloaded, campaign.ID).Error; err != nil {
		t.Fatalf("reload campaign: %v", err)
	}
	if reloaded.Status != database.CampaignStatusDraft {
		t.Fatalf("campaign status = %q, want draft", reloaded.Status)
	}

	wantPrefix := fmt.Sprintf("generated-ads/%d/", campaign.ID)
	if len(storage.prefixes) != 1 || storage.prefixes[0] != wantPrefix {
		t.Fatalf("purged prefixes = %v, want [%s]", storage.prefixes, wantPrefix)
	}
}

func TestUpdatePositions_MergesAndValidates(t *testing.T) {
	db := newTestDB(t)
	campaign := seedCampaign(t, db)
	ad := seedAd(t, db, campaign.ID, false)
	h := NewAdHandler(db, &fakeEnqueuer{}, newFakeLocker(), newFakeStorage(), nil)
	router := newAdRouter(h)

	w := performJSON(t, router, http.MethodPatch, fmt.Sprintf("/v1/ads/%d/positions", ad.ID), map[string]any{
		"headline": map[string]any{
			"x": 10, "y": 20, "fontSize": 24, "color": "#112233", "align": "left",
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var reloaded database.GeneratedAd
	if err := db.First(&reloaded, ad.ID).Error; err != nil {
		t.Fatalf("reload ad: %v", err)
	}
	var positions layout.PositionSet
	if err := json.Unmarshal(reloaded.ElementPositions, &positions); err != nil {
		t.Fatalf("decode positions: %v", err)
	}
	if positions[layout.ElementHeadline].FontSize != 24 {
		t.Fatalf("headline fontSize = %v, want 24", positions[layout.ElementHeadline].FontSize)
	}
	// 未在补丁里出现的元素保持原样。
	if _, ok := positions[layout.ElementCTA]; !ok {
		t.Fatal("cta position lost during merge")
	}
}

func TestUpdatePositions_RejectsBadColor(t *testing.T) {
	db := newTestDB(t)
	campaign := seedCampaign(t, db)
	ad := seedAd(t, db, campaign.ID, false)
	h := NewAdHandler(db, &fakeEnqueuer{}, newFakeLocker(), newFakeStorage(), nil)
	router := newAdRouter(h)

	w := performJSON(t, router, http.MethodPatch, fmt.Sprintf("/v1/ads/%d/positions", ad.ID), map[string]any{
		"headline": map[string]any{
			"x": 10, "y": 20, "fontSize": 24, "color": "red", "align": "left",
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestUpdatePositions_LockedAdConflicts(t *testing.T) {
	db := newTestDB(t)
	campaign := seedCampaign(t, db)
	ad := seedAd(t, db, campaign.ID, true)
	h := NewAdHandler(db, &fakeEnqueuer{}, newFakeLocker(), newFakeStorage(), nil)
	router := newAdRouter(h)

	w := performJSON(t, router, http.MethodPatch, fmt.Sprintf("/v1/ads/%d/positions", ad.ID), map[string]any{
		"headline": map[string]any{
			"x": 10, "y": 20, "fontSize": 24, "color": "#112233", "align": "left",
		},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestRender_EnqueuesCompositeWithLock(t *testing.T) {
	db := newTestDB(t)
	campaign := seedCampaign(t, db)
	ad := seedAd(t, db, campaign.ID, false)
	locker := newFakeLocker()
	enqueuer := &fakeEnqueuer{}
	h := NewAdHandler(db, enqueuer, locker, newFakeStorage(), nil)
	router := newAdRouter(h)

	w := performJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/ads/%d/render", ad.ID), nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	if len(enqueuer.enqueued) != 1 || enqueuer.enqueued[0].Type() != tasks.TypeAdComposite {
		t.Fatalf("enqueued = %v", enqueuer.enqueued)
	}
	if !locker.held[tasks.CompositeLockKey(ad.ID)] {
		t.Fatal("composite lock not held after enqueue")
	}

	// 合成在途时再次触发要被拒绝。
	w = performJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/ads/%d/render", ad.ID), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second render status = %d, want 409", w.Code)
	}
	if len(enqueuer.enqueued) != 1 {
		t.Fatal("second render enqueued despite lock")
	}
}

func TestUnlock_ReenablesEditing(t *testing.T) {
	db := newTestDB(t)
	campaign := seedCampaign(t, db)
	ad := seedAd(t, db, campaign.ID, true)
	h := NewAdHandler(db, &fakeEnqueuer{}, newFakeLocker(), newFakeStorage(), nil)
	router := newAdRouter(h)

	w := performJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/ads/%d/unlock", ad.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var reloaded database.GeneratedAd
	if err := db.First(&reloaded, ad.ID).Error; err != nil {
		t.Fatalf("reload ad: %v", err)
	}
	if reloaded.IsLocked {
		t.Fatal("ad still locked after unlock")
	}

	// 解锁后布局可以继续编辑。
	w = performJSON(t, router, http.MethodPatch, fmt.Sprintf("/v1/ads/%d/positions", ad.ID), map[string]any{
		"headline": map[string]any{
			"x": 5, "y": 5, "fontSize": 18, "color": "#000000", "align": "center",
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("edit after unlock status = %d, want 200: %s", w.Code, w.Body.String())
	}
}
