package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func TestSPAHandlerServesChatPage(t *testing.T) {
	rec := httptest.NewRecorder()
	SPAHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/ws/chat")
}

func TestSPAHandlerFallsBackToIndex(t *testing.T) {
	root := fstest.MapFS{
		"index.html": {Data: []byte("<html>chat</html>")},
		"app.js":     {Data: []byte("console.log(1)")},
	}
	h := spaHandler(root)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sprints/3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>chat</html>", rec.Body.String())
}
