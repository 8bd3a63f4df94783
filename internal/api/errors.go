package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"meddatachat/internal/logging"
	"meddatachat/internal/models"
	"meddatachat/internal/service/assistant"
	"meddatachat/internal/session"
	"meddatachat/internal/tabular"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidCSRF       = errors.New("invalid csrf token")

	errBadForm     = errors.New("invalid form")
	errMissingFile = errors.New("file is required")
)

// userError is what the page or a JSON client sees for a failed request.
type userError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

// toUserError maps an internal error to a status code and a message that is
// safe to show. fileName is used for parse errors.
func (h *Handler) toUserError(err error, fileName string) userError {
	var (
		parseErr *tabular.ParseError
		failure  *assistant.Failure
	)
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return userError{Status: http.StatusBadRequest, Code: "unsupported_format", Message: "Only .csv and .xlsx files are supported."}
	case errors.As(err, &parseErr):
		return userError{Status: http.StatusUnprocessableEntity, Code: "parse_error", Message: fmt.Sprintf("Could not read %s: %v", fileName, parseErr.Err)}
	case errors.Is(err, ErrFileTooLarge):
		return userError{Status: http.StatusRequestEntityTooLarge, Code: "file_too_large", Message: fmt.Sprintf("Files must be smaller than %s.", humanize.IBytes(uint64(h.opts.MaxUploadBytes)))}
	case errors.Is(err, errMissingFile):
		return userError{Status: http.StatusBadRequest, Code: "missing_file", Message: "Choose a .csv or .xlsx file to upload."}
	case errors.Is(err, assistant.ErrMissingCredential):
		return userError{Status: http.StatusUnauthorized, Code: "missing_credential", Message: fmt.Sprintf("Please enter your %s API key to continue.", h.opts.ProviderLabel)}
	case errors.Is(err, assistant.ErrNoTable):
		return userError{Status: http.StatusBadRequest, Code: "no_table", Message: "Upload a dataset first."}
	case errors.Is(err, assistant.ErrEmptyQuestion):
		return userError{Status: http.StatusBadRequest, Code: "empty_question", Message: "Ask a question about your dataset."}
	case errors.As(err, &failure) && failure.Class == assistant.RateLimited:
		return userError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "Quota limit hit. Please wait a minute before retrying.", Retry: true}
	case errors.As(err, &failure):
		return userError{Status: http.StatusBadGateway, Code: "remote_error", Message: fmt.Sprintf("%s API error: %v", h.opts.ProviderLabel, failure.Err)}
	case errors.Is(err, ErrInvalidCSRF):
		return userError{Status: http.StatusForbidden, Code: "invalid_csrf", Message: "Your session expired. Reload the page and try again."}
	case errors.Is(err, errBadForm):
		return userError{Status: http.StatusBadRequest, Code: "bad_request", Message: "The form could not be read."}
	case errors.Is(err, session.ErrNotFound):
		return userError{Status: http.StatusForbidden, Code: "session_expired", Message: "Your session expired. Reload the page and try again."}
	default:
		return userError{Status: http.StatusInternalServerError, Code: "internal", Message: "Something went wrong. Please try again."}
	}
}

// respondError writes err as JSON or as the form page with an error block,
// depending on what the client accepts.
func (h *Handler) respondError(c *gin.Context, se *models.Session, err error, view *pageView) {
	fileName := ""
	if se != nil {
		fileName = se.FileName
	}
	if view != nil && view.UploadName != "" {
		fileName = view.UploadName
	}
	ue := h.toUserError(err, fileName)
	_ = c.Error(err)
	logger := logging.FromContext(c.Request.Context())
	if ue.Status >= http.StatusInternalServerError && ue.Code == "internal" {
		logger.Error().Err(err).Msg("request failed")
	}

	if wantsJSON(c) {
		c.JSON(ue.Status, gin.H{"error": ue})
		return
	}
	if view == nil {
		view = h.newPageView(se)
	}
	view.Error = &ue
	c.HTML(ue.Status, pageTemplate, view)
}

func (h *Handler) abortWithError(c *gin.Context, se *models.Session, err error) {
	h.respondError(c, se, err, nil)
	c.Abort()
}
