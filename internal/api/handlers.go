package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"meddatachat/internal/logging"
	"meddatachat/internal/models"
	"meddatachat/internal/service/assistant"
	"meddatachat/internal/session"
	"meddatachat/internal/tabular"
)

// unzipRatio bounds how far an accepted workbook may inflate relative to the
// upload limit.
const unzipRatio = 20

type Options struct {
	MaxUploadBytes int64
	DisplayRows    int
	PreviewRows    int
	// ProviderLabel names the model vendor in user-facing messages.
	ProviderLabel string
	SecureCookies bool
}

// Handler wires HTTP routes to the assistant service and the in-memory
// session store.
type Handler struct {
	assistant *assistant.Service
	sessions  *session.Store
	cookies   sessions.Store
	opts      Options
	started   time.Time
}

// NewHandler constructs a Handler instance. secret signs the session cookie.
func NewHandler(service *assistant.Service, store *session.Store, secret []byte, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.DisplayRows <= 0 {
		opts.DisplayRows = 200
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = tabular.DefaultPreviewRows
	}
	if opts.ProviderLabel == "" {
		opts.ProviderLabel = "Gemini"
	}
	cookies := sessions.NewCookieStore(secret)
	cookies.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return &Handler{
		assistant: service,
		sessions:  store,
		cookies:   cookies,
		opts:      opts,
		started:   time.Now(),
	}
}

// ProviderLabel returns the display name of a provider key.
func ProviderLabel(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OpenAI"
	case "claude":
		return "Claude"
	default:
		return "Gemini"
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(loadTemplates())
	router.GET("/healthz", h.healthz)

	pages := router.Group("/")
	pages.Use(h.loadSession(), h.limitBody(), h.csrf())
	pages.GET("/", h.index)
	pages.POST("/credential", h.setCredential)
	pages.POST("/reset", h.reset)

	gated := pages.Group("/")
	gated.Use(h.requireCredential())
	gated.POST("/upload", h.upload)
	gated.POST("/ask", h.ask)
	gated.POST("/retry", h.retry)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.sessions.Len(),
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) index(c *gin.Context) {
	se := currentSession(c)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, h.stateJSON(se))
		return
	}
	c.HTML(http.StatusOK, pageTemplate, h.newPageView(se))
}

type credentialRequest struct {
	APIKey string `form:"api_key" json:"api_key"`
}

func (h *Handler) setCredential(c *gin.Context) {
	se := currentSession(c)
	var req credentialRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, se, errBadForm, nil)
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		h.respondError(c, se, assistant.ErrMissingCredential, nil)
		return
	}
	if err := h.sessions.SetCredential(se.ID, key); err != nil {
		h.respondError(c, se, err, nil)
		return
	}
	se, err := h.sessions.Get(se.ID)
	if err != nil {
		h.respondError(c, nil, err, nil)
		return
	}
	logging.FromContext(c.Request.Context()).Info().Msg("api key set for session")
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"has_credential": true})
		return
	}
	view := h.newPageView(se)
	view.Notice = "API key saved for this session."
	c.HTML(http.StatusOK, pageTemplate, view)
}

func (h *Handler) upload(c *gin.Context) {
	se := currentSession(c)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, se, ErrFileTooLarge, nil)
			return
		}
		h.respondError(c, se, errMissingFile, nil)
		return
	}
	name := filepath.Base(file.Filename)
	view := h.newPageView(se)
	view.UploadName = name
	if !tabular.Supported(name) {
		h.respondError(c, se, ErrUnsupportedFormat, view)
		return
	}
	if file.Size > h.opts.MaxUploadBytes {
		h.respondError(c, se, ErrFileTooLarge, view)
		return
	}
	f, err := file.Open()
	if err != nil {
		h.respondError(c, se, errMissingFile, view)
		return
	}
	defer f.Close()

	table, err := tabular.LoadLimit(f, name, h.opts.MaxUploadBytes*unzipRatio)
	if err != nil {
		logging.FromContext(c.Request.Context()).Warn().Err(err).Str("file", name).Msg("dataset rejected")
		h.respondError(c, se, err, view)
		return
	}
	if err := h.sessions.SetTable(se.ID, name, table); err != nil {
		h.respondError(c, se, err, view)
		return
	}
	logging.FromContext(c.Request.Context()).Info().
		Str("file", name).
		Int("rows", table.Len()).
		Int("columns", len(table.Columns)).
		Msg("dataset loaded")

	if se, err = h.sessions.Get(se.ID); err != nil {
		h.respondError(c, nil, err, nil)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{
			"file_name": name,
			"columns":   table.Columns,
			"row_count": table.Len(),
			"preview":   tabular.Preview(table, h.opts.PreviewRows),
		})
		return
	}
	view = h.newPageView(se)
	view.Notice = "File uploaded successfully!"
	c.HTML(http.StatusCreated, pageTemplate, view)
}

type askRequest struct {
	Question string `form:"question" json:"question"`
}

func (h *Handler) ask(c *gin.Context) {
	se := currentSession(c)
	var req askRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, se, errBadForm, nil)
		return
	}
	if strings.TrimSpace(req.Question) != "" {
		if err := h.sessions.SetLastQuestion(se.ID, req.Question); err != nil {
			h.respondError(c, se, err, nil)
			return
		}
		se.LastQuestion = req.Question
	}
	h.answer(c, se, req.Question)
}

// retry reruns the session's last question.
func (h *Handler) retry(c *gin.Context) {
	se := currentSession(c)
	h.answer(c, se, se.LastQuestion)
}

func (h *Handler) answer(c *gin.Context, se *models.Session, question string) {
	ans, err := h.assistant.Ask(c.Request.Context(), se, question)
	if err != nil {
		view := h.newPageView(se)
		view.Question = question
		h.respondError(c, se, err, view)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"answer": ans,
			"html":   renderMarkdown(ans.Text),
		})
		return
	}
	view := h.newPageView(se)
	view.Question = question
	view.Answer = h.newAnswerView(ans)
	c.HTML(http.StatusOK, pageTemplate, view)
}

// reset ends the session: the credential and dataset are discarded and the
// cookie is expired.
func (h *Handler) reset(c *gin.Context) {
	se := currentSession(c)
	h.sessions.Delete(se.ID)
	cs, _ := h.cookies.Get(c.Request, sessionCookieName)
	cs.Options.MaxAge = -1
	if err := cs.Save(c.Request, c.Writer); err != nil {
		h.respondError(c, nil, err, nil)
		return
	}
	logging.FromContext(c.Request.Context()).Info().Msg("session reset")
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"reset": true})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) stateJSON(se *models.Session) gin.H {
	state := gin.H{
		"csrf_token":     se.CSRFToken,
		"has_credential": se.HasCredential(),
		"provider":       h.opts.ProviderLabel,
		"accept":         tabular.AllowedExtensions(),
		"last_question":  se.LastQuestion,
	}
	if se.HasTable() {
		state["file_name"] = se.FileName
		state["columns"] = se.Table.Columns
		state["row_count"] = se.Table.Len()
		state["preview"] = tabular.Preview(se.Table, h.opts.PreviewRows)
	}
	return state
}
