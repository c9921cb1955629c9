package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "up") })

	orders := NewDomainGroup("orders", "/orders").
		GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, "order "+c.Param("id")) }).
		POST("/:id/confirm", func(c *gin.Context) { c.Status(http.StatusOK) }).
		PUT("/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	drafts := NewDomainGroup("drafts", "/drafts").
		DELETE("/tabs/:tab", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	NewRouter(engine, WithAPIVersion("v2")).
		Register(orders).
		Register(drafts).
		Setup()

	w := serve(engine, http.MethodGet, "/api/v2/orders/42")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "order 42", w.Body.String())

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPost, "/api/v2/orders/42/confirm").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPut, "/api/v2/orders/42").Code)
	assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodDelete, "/api/v2/drafts/tabs/t1").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/orders/42").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health").Code)
}

func TestRouter_DefaultsToV1(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("payments", "/payments").
		POST("", func(c *gin.Context) { c.Status(http.StatusCreated) })
	NewRouter(engine).Register(group).Setup()

	assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/payments").Code)
	assert.Equal(t, "payments", group.Name())
}
