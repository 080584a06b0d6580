package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/huddleapp/huddle/internal/database/testutil"
	"github.com/huddleapp/huddle/internal/middleware"
	"github.com/huddleapp/huddle/internal/models"
	"github.com/huddleapp/huddle/internal/services"
	"github.com/huddleapp/huddle/pkg/errors"
	"github.com/huddleapp/huddle/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newNotificationHandler(t *testing.T, db *gorm.DB) *NotificationHandler {
	t.Helper()

	service, err := services.NewNotificationService(db, nil)
	require.NoError(t, err)
	return NewNotificationHandler(service, nil, nil)
}

func createHandlerUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()

	user := models.User{
		Username: name + "-" + uuid.NewString()[:8],
		Email:    name + "-" + uuid.NewString()[:8] + "@example.com",
		Password: "secret",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func postJSON(t *testing.T, userID string, body any) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserIDKey, userID)
	return recorder, c
}

func TestNotificationHandlerFanout(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	handler := newNotificationHandler(t, db)

	actor := createHandlerUser(t, db, "actor")
	alice := createHandlerUser(t, db, "h-alice")
	bob := createHandlerUser(t, db, "h-bob")

	recorder, c := postJSON(t, actor.ID, gin.H{
		"type": "task_assigned",
		// Duplicates and empty entries collapse before delivery.
		"recipients": []string{alice.ID, alice.ID, "", bob.ID},
		"taskId":     uuid.NewString(),
		"meta": gin.H{
			"actor_name": "Actor",
			"task_title": "Ship the release",
		},
	})
	handler.Fanout(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)

	dataBytes, err := json.Marshal(payload.Data)
	require.NoError(t, err)
	var result services.FanoutResult
	require.NoError(t, json.Unmarshal(dataBytes, &result))
	require.Len(t, result.IDs, 2)
	require.Empty(t, result.Errors)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id IN ?", []string{alice.ID, bob.ID}).
		Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestNotificationHandlerFanoutTotalFailureReturns500(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	handler := newNotificationHandler(t, db)

	actor := createHandlerUser(t, db, "h-fail-actor")
	alice := createHandlerUser(t, db, "h-fail-alice")
	bob := createHandlerUser(t, db, "h-fail-bob")

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("notification_insert_fault", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*models.Notification); ok {
			_ = tx.AddError(gorm.ErrInvalidTransaction)
		}
	}))

	recorder, c := postJSON(t, actor.ID, gin.H{
		"type":       "task_assigned",
		"recipients": []string{alice.ID, bob.ID},
		"meta": gin.H{
			"actor_name": "Actor",
			"task_title": "Ship the release",
		},
	})
	handler.Fanout(c)

	require.Equal(t, http.StatusInternalServerError, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.NotNil(t, payload.Error)
	require.Equal(t, errors.ErrDeliveryFailed.Code, payload.Error.Code)

	details, ok := payload.Error.Details.(map[string]any)
	require.True(t, ok)
	require.ElementsMatch(t, []any{alice.ID, bob.ID}, details["recipients"].([]any))
	require.Len(t, details["errors"].(map[string]any), 2)
}

func TestNotificationHandlerFanoutPartialFailureReturns200(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	handler := newNotificationHandler(t, db)

	actor := createHandlerUser(t, db, "h-part-actor")
	alice := createHandlerUser(t, db, "h-part-alice")
	bob := createHandlerUser(t, db, "h-part-bob")

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("notification_insert_fault", func(tx *gorm.DB) {
		if row, ok := tx.Statement.Dest.(*models.Notification); ok && row.UserID == bob.ID {
			_ = tx.AddError(gorm.ErrInvalidTransaction)
		}
	}))

	recorder, c := postJSON(t, actor.ID, gin.H{
		"type":       "task_assigned",
		"recipients": []string{alice.ID, bob.ID},
		"meta": gin.H{
			"actor_name": "Actor",
			"task_title": "Ship the release",
		},
	})
	handler.Fanout(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)

	dataBytes, err := json.Marshal(payload.Data)
	require.NoError(t, err)
	var result services.FanoutResult
	require.NoError(t, json.Unmarshal(dataBytes, &result))
	require.Len(t, result.IDs, 1)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors, bob.ID)
}

func TestNotificationHandlerFanoutRejectsUnknownType(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	handler := newNotificationHandler(t, db)

	actor := createHandlerUser(t, db, "bad-actor")
	recorder, c := postJSON(t, actor.ID, gin.H{
		"type":       "reminder",
		"recipients": []string{uuid.NewString()},
	})
	handler.Fanout(c)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestNotificationHandlerFanoutRejectsMissingType(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	handler := newNotificationHandler(t, db)

	actor := createHandlerUser(t, db, "typeless")
	recorder, c := postJSON(t, actor.ID, gin.H{
		"recipients": []string{uuid.NewString()},
	})
	handler.Fanout(c)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestNotificationHandlerFanoutEmptyRecipients(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	handler := newNotificationHandler(t, db)

	actor := createHandlerUser(t, db, "lonely")
	recorder, c := postJSON(t, actor.ID, gin.H{
		"type":       "member_joined",
		"recipients": []string{},
		"meta":       gin.H{"member_name": "Zoe"},
	})
	handler.Fanout(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)
}

func TestNotificationHandlerDedupeFlag(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	handler := newNotificationHandler(t, db)

	actor := createHandlerUser(t, db, "dedupe-actor")
	target := createHandlerUser(t, db, "dedupe-target")

	body := gin.H{
		"type":       "new_message",
		"recipients": []string{target.ID},
		"threadId":   uuid.NewString(),
		"meta": gin.H{
			"actor_name": "Dee",
			"preview":    "hello",
			"dedupeKey":  "thread-burst",
		},
	}
	for i := 0; i < 2; i++ {
		recorder, c := postJSON(t, actor.ID, body)
		handler.Fanout(c)
		require.Equal(t, http.StatusOK, recorder.Code)
	}

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ?", target.ID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestNotificationHandlerListAndMarkRead(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	handler := newNotificationHandler(t, db)

	actor := createHandlerUser(t, db, "list-actor")
	user := createHandlerUser(t, db, "list-user")

	for i := 0; i < 2; i++ {
		recorder, c := postJSON(t, actor.ID, gin.H{
			"type":       "project_created",
			"recipients": []string{user.ID},
			"projectId":  uuid.NewString(),
			"meta":       gin.H{"actor_name": "Pat", "project_name": "Atlas"},
		})
		handler.Fanout(c)
		require.Equal(t, http.StatusOK, recorder.Code)
	}

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	c.Set(middleware.CtxUserIDKey, user.ID)
	handler.List(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	require.NotNil(t, payload.Meta)
	require.EqualValues(t, 2, payload.Meta.UnreadCount)

	dataBytes, err := json.Marshal(payload.Data)
	require.NoError(t, err)
	var items []services.NotificationDTO
	require.NoError(t, json.Unmarshal(dataBytes, &items))
	require.Len(t, items, 2)

	markRecorder, markCtx := postJSON(t, user.ID, gin.H{"ids": []string{items[0].ID, items[1].ID}})
	handler.MarkRead(markCtx)
	require.Equal(t, http.StatusOK, markRecorder.Code)

	var markPayload response.Response
	require.NoError(t, json.Unmarshal(markRecorder.Body.Bytes(), &markPayload))
	updated := markPayload.Data.(map[string]any)["updated"]
	require.EqualValues(t, 2, updated)
}

func TestNotificationHandlerClear(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	handler := newNotificationHandler(t, db)

	actor := createHandlerUser(t, db, "clear-actor")
	user := createHandlerUser(t, db, "clear-user")

	recorder, c := postJSON(t, actor.ID, gin.H{
		"type":       "member_joined",
		"recipients": []string{user.ID},
		"meta":       gin.H{"member_name": "Quinn", "workspace_name": "Acme"},
	})
	handler.Fanout(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	clearRecorder := httptest.NewRecorder()
	clearCtx, _ := gin.CreateTestContext(clearRecorder)
	clearCtx.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	clearCtx.Set(middleware.CtxUserIDKey, user.ID)
	handler.Clear(clearCtx)

	require.Equal(t, http.StatusOK, clearRecorder.Code)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ?", user.ID).
		Count(&count).Error)
	require.Zero(t, count)
}

func TestNotificationHandlerRequiresAuth(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	handler := newNotificationHandler(t, db)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler.List(c)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
