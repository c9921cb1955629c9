package handler

import (
	"net/http"
	"strconv"

	draftapp "github.com/erp/backoffice/internal/application/draft"
	"github.com/erp/backoffice/internal/domain/draft"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/erp/backoffice/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// DraftHandler saves and discards local edit drafts
type DraftHandler struct {
	BaseHandler
	sessions *draftapp.SessionManager
}

// NewDraftHandler creates a new DraftHandler
func NewDraftHandler(sessions *draftapp.SessionManager) *DraftHandler {
	return &DraftHandler{sessions: sessions}
}

// Routes builds the /drafts group. Tab drafts take their document type from ?type=.
func (h *DraftHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("drafts", "/drafts")
	g.POST("/tabs", h.OpenTab)
	g.PUT("/tabs/:tab", h.TrackTab)
	g.GET("/tabs/:tab", h.LoadTab)
	g.DELETE("/tabs/:tab", h.CloseTab)
	g.PUT("/:type/:id", h.TrackDocument)
	g.GET("/:type/:id", h.LoadDocument)
	g.DELETE("/:type/:id", h.DiscardDocument)
	return g
}

func (h *DraftHandler) documentKey(c *gin.Context) (draft.Key, bool) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return draft.Key{}, false
	}
	key := draft.DocumentKey(draft.DocumentType(c.Param("type")), id)
	if err := key.Validate(); err != nil {
		h.HandleError(c, err)
		return draft.Key{}, false
	}
	return key, true
}

func (h *DraftHandler) tabKey(c *gin.Context) (draft.Key, bool) {
	key := draft.TabKey(draft.DocumentType(c.Query("type")), c.Param("tab"))
	if err := key.Validate(); err != nil {
		h.HandleError(c, err)
		return draft.Key{}, false
	}
	return key, true
}

// OpenTab godoc
// @Summary  Allocate a tab id for a new, unsaved document
// @Tags     drafts
// @Router   /drafts/tabs [post]
func (h *DraftHandler) OpenTab(c *gin.Context) {
	docType := draft.DocumentType(c.Query("type"))
	if !docType.IsValid() {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "Unknown document type")
		return
	}
	h.Created(c, draft.NewTabKey(docType))
}

// TrackDocument godoc
// @Summary  Save the local edits of an existing document
// @Tags     drafts
// @Router   /drafts/{type}/{id} [put]
func (h *DraftHandler) TrackDocument(c *gin.Context) {
	key, ok := h.documentKey(c)
	if !ok {
		return
	}
	h.track(c, key)
}

// TrackTab godoc
// @Summary  Save the local edits of a document that has no id yet
// @Tags     drafts
// @Router   /drafts/tabs/{tab} [put]
func (h *DraftHandler) TrackTab(c *gin.Context) {
	key, ok := h.tabKey(c)
	if !ok {
		return
	}
	h.track(c, key)
}

func (h *DraftHandler) track(c *gin.Context, key draft.Key) {
	var snapshot draft.Snapshot
	if !h.bindJSON(c, &snapshot) {
		return
	}
	result, err := h.sessions.Track(c.Request.Context(), key, &snapshot)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// LoadDocument godoc
// @Summary  Get the stored draft of an existing document
// @Tags     drafts
// @Router   /drafts/{type}/{id} [get]
func (h *DraftHandler) LoadDocument(c *gin.Context) {
	key, ok := h.documentKey(c)
	if !ok {
		return
	}
	h.load(c, key)
}

// LoadTab godoc
// @Summary  Get the stored draft of a tab
// @Tags     drafts
// @Router   /drafts/tabs/{tab} [get]
func (h *DraftHandler) LoadTab(c *gin.Context) {
	key, ok := h.tabKey(c)
	if !ok {
		return
	}
	h.load(c, key)
}

func (h *DraftHandler) load(c *gin.Context, key draft.Key) {
	snapshot, found, err := h.sessions.Load(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !found {
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "No draft for "+key.String())
		return
	}
	h.Success(c, snapshot)
}

// DiscardDocument godoc
// @Summary  Discard the draft of an existing document
// @Tags     drafts
// @Router   /drafts/{type}/{id} [delete]
func (h *DraftHandler) DiscardDocument(c *gin.Context) {
	key, ok := h.documentKey(c)
	if !ok {
		return
	}
	if err := h.sessions.Discard(c.Request.Context(), key); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// CloseTab godoc
// @Summary  Close a tab, keeping its draft when ?unsaved=true
// @Tags     drafts
// @Router   /drafts/tabs/{tab} [delete]
func (h *DraftHandler) CloseTab(c *gin.Context) {
	key, ok := h.tabKey(c)
	if !ok {
		return
	}
	unsaved := false
	if raw := c.Query("unsaved"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "unsaved must be a boolean")
			return
		}
		unsaved = v
	}
	if err := h.sessions.CloseTab(c.Request.Context(), key, unsaved); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
