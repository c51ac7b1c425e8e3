package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/handler/dto"
)

func TestMessages_RequireLogin(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/messages", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/messages", map[string]string{"content": "hi"}, nil).Code)
}

func TestMessages_PostListReplyDelete(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "alice@example.com", "Str0ng!Pass", entity.RoleUser)
	admin := env.createUser(t, "admin", "admin@example.com", "Str0ng!Pass", entity.RoleAdmin)
	aliceCookie := env.sessionFor(t, alice)
	adminCookie := env.sessionFor(t, admin)

	w := env.do(http.MethodPost, "/api/messages", map[string]string{"content": "first"}, aliceCookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created dto.MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, "first", created.Content)

	w = env.do(http.MethodPost, "/api/messages", map[string]string{"content": "second"}, aliceCookie)
	require.Equal(t, http.StatusCreated, w.Code)

	// обычный пользователь: новые сверху, без can_manage
	w = env.do(http.MethodGet, "/api/messages", nil, aliceCookie)
	require.Equal(t, http.StatusOK, w.Code)
	var list []dto.MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Content)
	assert.Equal(t, "first", list[1].Content)
	assert.False(t, list[0].CanManage)
	assert.NotContains(t, w.Body.String(), "can_manage")
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, list[0].Date)

	// ответ может дать только администратор
	w = env.do(http.MethodPost, "/api/messages/1/reply", map[string]string{"content": "nope"}, aliceCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/messages/1/reply", map[string]string{"content": "thanks!"}, adminCookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reply dto.ReplyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, "admin", reply.Developer)

	w = env.do(http.MethodPost, "/api/messages/42/reply", map[string]string{"content": "thanks!"}, adminCookie)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/messages", nil, adminCookie)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.True(t, list[0].CanManage)
	require.Len(t, list[1].Replies, 1)
	assert.Equal(t, "thanks!", list[1].Replies[0].Content)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, "/api/messages/1", nil, aliceCookie).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/api/messages/1", nil, adminCookie).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/messages/1", nil, adminCookie).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodDelete, "/api/messages/abc", nil, adminCookie).Code)
}

func TestMessages_PostValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "alice@example.com", "Str0ng!Pass", entity.RoleUser)
	cookie := env.sessionFor(t, alice)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/messages", map[string]string{"content": ""}, cookie).Code)

	w := env.do(http.MethodPost, "/api/messages", map[string]string{"content": "   "}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", parseJSONResponse(t, w)["error_type"])

	w = env.do(http.MethodPost, "/api/messages", map[string]string{"content": strings.Repeat("я", 1001)}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessages_PostThrottled(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "alice@example.com", "Str0ng!Pass", entity.RoleUser)
	cookie := env.sessionFor(t, alice)

	// burst 2
	assert.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/messages", map[string]string{"content": "1"}, cookie).Code)
	assert.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/messages", map[string]string{"content": "2"}, cookie).Code)
	w := env.do(http.MethodPost, "/api/messages", map[string]string{"content": "3"}, cookie)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestMessages_InvalidPostsDoNotSpendThrottle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "alice@example.com", "Str0ng!Pass", entity.RoleUser)
	cookie := env.sessionFor(t, alice)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/messages", map[string]string{"content": ""}, cookie).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/messages", map[string]string{"content": "   "}, cookie).Code)

	w := env.do(http.MethodPost, "/api/messages", map[string]string{"content": "valid"}, cookie)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestMessages_Export(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "alice@example.com", "Str0ng!Pass", entity.RoleUser)
	admin := env.createUser(t, "admin", "admin@example.com", "Str0ng!Pass", entity.RoleAdmin)
	adminCookie := env.sessionFor(t, admin)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/messages", map[string]string{"content": "=HYPERLINK(\"x\")"}, env.sessionFor(t, alice)).Code)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/messages/1/reply", map[string]string{"content": "hi"}, adminCookie).Code)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/admin/messages/export", nil, env.sessionFor(t, alice)).Code)

	t.Run("xlsx", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/admin/messages/export", nil, adminCookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()

		user, err := f.GetCellValue("Messages", "B2")
		require.NoError(t, err)
		assert.Equal(t, "alice", user)
		content, err := f.GetCellValue("Messages", "C2")
		require.NoError(t, err)
		assert.Equal(t, "'=HYPERLINK(\"x\")", content)

		replyBy, err := f.GetCellValue("Replies", "B2")
		require.NoError(t, err)
		assert.Equal(t, "admin", replyBy)
	})

	t.Run("csv", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/admin/messages/export?format=csv", nil, adminCookie)
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.True(t, strings.HasPrefix(body, "\xEF\xBB\xBF"))
		assert.Contains(t, body, "alice")
		assert.Contains(t, body, `"'=HYPERLINK(""x"")"`)
	})

	t.Run("unknown format", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/admin/messages/export?format=pdf", nil, adminCookie)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSanitizeForExcel(t *testing.T) {
	assert.Equal(t, "", sanitizeForExcel(""))
	assert.Equal(t, "hello", sanitizeForExcel("hello"))
	assert.Equal(t, "'=1+1", sanitizeForExcel("=1+1"))
	assert.Equal(t, "'@cmd", sanitizeForExcel("@cmd"))
	assert.Equal(t, "'-2", sanitizeForExcel("-2"))
}
