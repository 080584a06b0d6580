package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/huddleapp/huddle/internal/app"
	iauth "github.com/huddleapp/huddle/internal/auth"
	"github.com/huddleapp/huddle/internal/database/testutil"
	"github.com/huddleapp/huddle/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret"})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Server.BaseURL = "http://localhost:8000"

	router, err := NewRouter(db, jwt, cfg, nil, nil)
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	var envelope response.Response
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	}
	return recorder, envelope
}

func registerUser(t *testing.T, router *gin.Engine, name string) (id, token string) {
	t.Helper()

	suffix := uuid.NewString()[:8]
	recorder, envelope := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": name + "-" + suffix,
		"email":    name + "-" + suffix + "@example.com",
		"password": "long enough password",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	require.True(t, envelope.Success)

	data := envelope.Data.(map[string]any)
	user := data["user"].(map[string]any)
	return user["id"].(string), data["token"].(string)
}

func TestRouterHealth(t *testing.T) {
	router := newTestRouter(t)

	recorder, envelope := doJSON(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, envelope.Success)
}

func TestRouterRejectsMissingToken(t *testing.T) {
	router := newTestRouter(t)

	recorder, _ := doJSON(t, router, http.MethodGet, "/api/notifications", "", nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRouterAuthFlow(t *testing.T) {
	router := newTestRouter(t)

	_, token := registerUser(t, router, "flow")

	recorder, envelope := doJSON(t, router, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, envelope.Success)
}

func TestRouterFanoutAndList(t *testing.T) {
	router := newTestRouter(t)

	_, actorToken := registerUser(t, router, "sender")
	aliceID, aliceToken := registerUser(t, router, "alice")
	bobID, _ := registerUser(t, router, "bob")

	recorder, envelope := doJSON(t, router, http.MethodPost, "/api/notifications/fanout", actorToken, gin.H{
		"type":       "task_assigned",
		"recipients": []string{aliceID, aliceID, "", bobID},
		"taskId":     uuid.NewString(),
		"meta": gin.H{
			"actor_name": "Sender",
			"task_title": "Review the proposal",
		},
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, envelope.Success)

	data := envelope.Data.(map[string]any)
	ids := data["ids"].([]any)
	require.Len(t, ids, 2)

	listRecorder, listEnvelope := doJSON(t, router, http.MethodGet, "/api/notifications?limit=10", aliceToken, nil)
	require.Equal(t, http.StatusOK, listRecorder.Code)
	require.True(t, listEnvelope.Success)
	require.NotNil(t, listEnvelope.Meta)
	require.EqualValues(t, 1, listEnvelope.Meta.UnreadCount)

	items := listEnvelope.Data.([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	require.Equal(t, "Sender assigned you a task", first["title"])
}

func TestRouterFanoutRejectsUnknownType(t *testing.T) {
	router := newTestRouter(t)

	_, token := registerUser(t, router, "rejector")
	recorder, _ := doJSON(t, router, http.MethodPost, "/api/notifications/fanout", token, gin.H{
		"type":       "reminder",
		"recipients": []string{uuid.NewString()},
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouterWorkspaceLifecycle(t *testing.T) {
	router := newTestRouter(t)

	ownerID, ownerToken := registerUser(t, router, "ws-owner")
	memberID, _ := registerUser(t, router, "ws-member")

	recorder, envelope := doJSON(t, router, http.MethodPost, "/api/workspaces", ownerToken, gin.H{
		"name": "Router Co",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	workspaceID := envelope.Data.(map[string]any)["id"].(string)

	recorder, _ = doJSON(t, router, http.MethodPost, "/api/workspaces/"+workspaceID+"/members", ownerToken, gin.H{
		"user_id": memberID,
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	recorder, envelope = doJSON(t, router, http.MethodGet, "/api/workspaces/"+workspaceID+"/members", ownerToken, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	members := envelope.Data.([]any)
	require.Len(t, members, 2)

	_ = ownerID
}
