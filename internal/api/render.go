package api

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"meddatachat/internal/models"
	"meddatachat/internal/service/assistant"
	"meddatachat/internal/tabular"
)

const pageTemplate = "index.html"

//go:embed templates/*.html
var templatesFS embed.FS

// markdown renders model answers. Raw HTML in answers is dropped.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func loadTemplates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
	}).ParseFS(templatesFS, "templates/*.html"))
}

type pageView struct {
	ProviderLabel string
	CSRFToken     string
	Accept        string
	HasCredential bool

	FileName   string
	UploadName string
	Columns    []string
	Rows       [][]string
	TotalRows  int
	Truncated  bool
	Preview    string

	Question string
	Notice   string
	Answer   *answerView
	Error    *userError
}

type answerView struct {
	HTML         template.HTML
	Model        string
	UsedFallback bool
	Warning      string
}

func (h *Handler) newPageView(se *models.Session) *pageView {
	view := &pageView{
		ProviderLabel: h.opts.ProviderLabel,
		Accept:        strings.Join(tabular.AllowedExtensions(), ","),
	}
	if se == nil {
		return view
	}
	view.CSRFToken = se.CSRFToken
	view.HasCredential = se.HasCredential()
	view.FileName = se.FileName
	view.Question = se.LastQuestion
	if se.HasTable() {
		t := se.Table
		view.Columns = t.Columns
		view.TotalRows = t.Len()
		for _, row := range t.Head(h.opts.DisplayRows) {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = v.String()
			}
			view.Rows = append(view.Rows, cells)
		}
		view.Truncated = view.TotalRows > len(view.Rows)
		view.Preview = tabular.Preview(t, h.opts.PreviewRows)
	}
	return view
}

func (h *Handler) newAnswerView(ans *assistant.Answer) *answerView {
	av := &answerView{
		HTML:         renderMarkdown(ans.Text),
		Model:        ans.Model,
		UsedFallback: ans.UsedFallback,
	}
	if ans.UsedFallback {
		av.Warning = h.assistant.PrimaryModel() + " unavailable, answered with " + ans.Model + "."
	}
	return av
}

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(buf.String())
}

func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}
