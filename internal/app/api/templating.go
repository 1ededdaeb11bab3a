package api

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/jritsema/gotoolbox/web"
)

var (
	//go:embed all:static/*
	staticFS embed.FS

	//go:embed all:templates/*
	templateFS embed.FS

	//parsed templates
	html *template.Template
)

func init() {
	var err error
	html, err = web.TemplateParseFSRecursive(templateFS, ".html", true, nil)
	if err != nil {
		panic(err)
	}
}

func getString(templateName string, data any) string {
	sb := &strings.Builder{}
	err := html.ExecuteTemplate(sb, templateName, data)
	if err != nil {
		return err.Error()
	}

	return sb.String()
}

func getHtml(templateName string, data any) template.HTML {
	return template.HTML(getString(templateName, data))
}

type page struct {
	Title     string
	Content   template.HTML
	DarkTheme bool
}

type htmlErr struct {
	ErrorCode    int
	ErrorMessage string
}

func isDarkTheme(r *http.Request) bool {
	themeCookie, err := r.Cookie("theme")
	if err != nil {
		return true
	}

	return themeCookie.Value == "dark"
}

func createPage(r *http.Request) *page {
	return &page{
		Title:     "Speech Generator",
		DarkTheme: isDarkTheme(r),
	}
}

func errPage(r *http.Request, errCode int, errMessage string) *page {
	page := createPage(r)
	page.Title = "Speech Generator - Error"
	page.Content = getHtml("error.html", &htmlErr{
		ErrorCode:    errCode,
		ErrorMessage: errMessage,
	})

	return page
}

func submitPage(w http.ResponseWriter, page *page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = html.ExecuteTemplate(w, "page.html", page)
}

type language struct {
	Code string
	Name string
}

// languages offered by the form. Free text is still accepted by the endpoint.
var languages = []language{
	{"en", "English"},
	{"es", "Spanish"},
	{"fr", "French"},
	{"de", "German"},
	{"it", "Italian"},
	{"pt", "Portuguese"},
	{"pl", "Polish"},
	{"tr", "Turkish"},
	{"ru", "Russian"},
	{"nl", "Dutch"},
	{"cs", "Czech"},
	{"ar", "Arabic"},
	{"zh-cn", "Chinese"},
	{"ja", "Japanese"},
	{"hu", "Hungarian"},
	{"ko", "Korean"},
	{"hi", "Hindi"},
}

type indexPage struct {
	Languages    []language
	ResponseMode string
	MaxUploadMiB int64
	Device       string
}
