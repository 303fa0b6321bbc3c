package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/require"

	"github.com/tallybook/tallybook/internal/logging"
	"github.com/tallybook/tallybook/internal/models"
	"github.com/tallybook/tallybook/internal/server/storage"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	s := NewServer(storage.NewMemory(), logging.Nop(), []byte("test-secret"), time.Hour, pool)
	return s.Router()
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "correcthorse"}

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestAuth_RegisterLoginFlow(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r, "alice")
	require.NotEmpty(t, token)

	// Duplicate registration is rejected.
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "alice", "password": "correcthorse"})
	require.Equal(t, http.StatusConflict, w.Code)

	// Wrong password is unauthorized.
	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "alice", "password": "wrongwrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDataset_RequiresAuth(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/dataset", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/dataset", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDataset_RoundTrip(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r, "alice")

	ds := models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "t1", Version: 1}, Name: "food"}},
		Transactions: []models.Transaction{
			{Meta: models.Meta{ID: "x", Version: 1}, AmountCents: 1250, Description: "lunch"},
		},
	}

	w := doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, ds)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/dataset", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Dataset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Tags, 1)
	require.Len(t, got.Transactions, 1)
	require.EqualValues(t, 1250, got.Transactions[0].AmountCents)
}

func TestDataset_IdenticalRepushAccepted(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r, "alice")

	ds := models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "t1", Version: 3}, Name: "food"}},
	}
	require.Equal(t, http.StatusNoContent,
		doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, ds).Code)
	require.Equal(t, http.StatusNoContent,
		doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, ds).Code)
}

func TestDataset_StaleVersionConflicts(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r, "alice")

	stored := models.Dataset{
		Transactions: []models.Transaction{
			{Meta: models.Meta{ID: "x", Version: 5}, Description: "server copy"},
		},
	}
	require.Equal(t, http.StatusNoContent,
		doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, stored).Code)

	stale := models.Dataset{
		Transactions: []models.Transaction{
			{Meta: models.Meta{ID: "x", Version: 3}, Description: "my copy"},
		},
	}
	w := doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, stale)
	require.Equal(t, http.StatusConflict, w.Code)

	var payload struct {
		Conflicts models.Dataset `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Len(t, payload.Conflicts.Transactions, 1)
	require.EqualValues(t, 5, payload.Conflicts.Transactions[0].Version)
	require.Equal(t, "server copy", payload.Conflicts.Transactions[0].Description)

	// The rejected write must not have replaced anything.
	w = doJSON(t, r, http.MethodGet, "/api/v1/dataset", token, nil)
	var got models.Dataset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "server copy", got.Transactions[0].Description)
}

func TestDataset_EqualVersionDifferentPayloadConflicts(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r, "alice")

	require.Equal(t, http.StatusNoContent, doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "t1", Version: 2}, Name: "food"}},
	}).Code)

	w := doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "t1", Version: 2}, Name: "groceries"}},
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDataset_NewRecordsAccepted(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r, "alice")

	require.Equal(t, http.StatusNoContent, doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "t1", Version: 1}, Name: "food"}},
	}).Code)

	// Higher version plus a brand-new record sails through.
	require.Equal(t, http.StatusNoContent, doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, models.Dataset{
		Tags: []models.Tag{
			{Meta: models.Meta{ID: "t1", Version: 2}, Name: "groceries"},
			{Meta: models.Meta{ID: "t2", Version: 1}, Name: "rent"},
		},
	}).Code)
}

func TestDataset_MalformedRecordsRejected(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r, "alice")

	w := doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "", Version: 1}, Name: "no id"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/v1/dataset", token, models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "t1", Version: 0}, Name: "bad version"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDataset_PerUserIsolation(t *testing.T) {
	r := newTestRouter(t)
	alice := registerAndLogin(t, r, "alice")
	bob := registerAndLogin(t, r, "bob")

	require.Equal(t, http.StatusNoContent, doJSON(t, r, http.MethodPut, "/api/v1/dataset", alice, models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "t1", Version: 1}, Name: "food"}},
	}).Code)

	w := doJSON(t, r, http.MethodGet, "/api/v1/dataset", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Dataset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.True(t, got.Empty())
}
