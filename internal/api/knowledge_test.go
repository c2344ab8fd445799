package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexzhang/converse/internal/knowledge"
	"github.com/alexzhang/converse/internal/testutil"
)

func newKnowledgeServer(t *testing.T, store *fakeSegmentStore) *Server {
	t.Helper()
	idx := knowledge.NewIndex(store, knowledge.Config{}, testutil.DiscardLogger())
	return newTestServer(t, serverOptions{knowledgeIdx: idx})
}

func TestKnowledgeRoutes_Unconfigured(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	handler := srv.Handler()

	for _, req := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/knowledge", `{"title":"t","content":"c"}`},
		{http.MethodGet, "/api/knowledge", ""},
		{http.MethodGet, "/api/knowledge/abc12345", ""},
		{http.MethodDelete, "/api/knowledge/abc12345", ""},
		{http.MethodPost, "/api/knowledge/search", `{"query":"q"}`},
		{http.MethodGet, "/api/knowledge/stats", ""},
	} {
		rec := doJSON(t, handler, req.method, req.path, req.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "%s %s", req.method, req.path)
	}
}

func TestKnowledgeCreateAndGet(t *testing.T) {
	srv := newKnowledgeServer(t, &fakeSegmentStore{})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/knowledge",
		`{"title":"Go history","content":"Go was released in 2009."}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Entry knowledge.Entry `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Entry.ID, 8)
	assert.Equal(t, "Go history", created.Entry.Title)
	assert.Equal(t, 1, created.Entry.SegmentCount)

	rec = doJSON(t, handler, http.MethodGet, "/api/knowledge/"+created.Entry.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/knowledge/missing1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKnowledgeCreate_Validation(t *testing.T) {
	srv := newKnowledgeServer(t, &fakeSegmentStore{})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/knowledge", `{"title":"","content":"c"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/knowledge", `{"title":"t","content":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKnowledgeCreate_StoreFailure(t *testing.T) {
	srv := newKnowledgeServer(t, &fakeSegmentStore{storeErr: assert.AnError})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/knowledge", `{"title":"t","content":"c"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The failed entry must not show up in listings.
	rec = doJSON(t, handler, http.MethodGet, "/api/knowledge", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestKnowledgeListAndDelete(t *testing.T) {
	srv := newKnowledgeServer(t, &fakeSegmentStore{})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/knowledge", `{"title":"One","content":"first"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Entry knowledge.Entry `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, handler, http.MethodGet, "/api/knowledge", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = doJSON(t, handler, http.MethodDelete, "/api/knowledge/"+created.Entry.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Deleting twice is a 404: the metadata record is gone.
	rec = doJSON(t, handler, http.MethodDelete, "/api/knowledge/"+created.Entry.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKnowledgeSearch(t *testing.T) {
	store := &fakeSegmentStore{matches: []knowledge.Match{
		{Content: "Go was released in 2009.", Score: 0.91, Source: "abc12345"},
	}}
	srv := newKnowledgeServer(t, store)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/knowledge/search", `{"query":"when was Go released?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Go was released in 2009.")
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = doJSON(t, handler, http.MethodPost, "/api/knowledge/search", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKnowledgeStats(t *testing.T) {
	srv := newKnowledgeServer(t, &fakeSegmentStore{})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/knowledge", `{"title":"One","content":"12345"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/knowledge/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats knowledge.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, int64(5), stats.TotalCharacters)
	assert.Equal(t, "fake-model", stats.EmbeddingModel)
}
