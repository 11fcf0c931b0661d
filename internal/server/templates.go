package server

import (
	_ "embed"
	"html/template"
)

//go:embed templates/callback.html
var callbackPageTemplateHTML string

var callbackPageTemplate = template.Must(template.New("callback").Parse(callbackPageTemplateHTML))

// CallbackPageData represents the data for the redirect callback page
type CallbackPageData struct {
	Name        string
	ScriptNonce string
	CSRFToken   string
	SubmitPath  string
	LoginPath   string
}
