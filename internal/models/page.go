package models

import "net/http"

// Page types reported by the page assessor
const (
	PageTypeListView = "list_view"
	PageTypeFormView = "form_view"
	PageTypeOther    = "other"
)

// PageAssessment represents the result of analyzing a host page
type PageAssessment struct {
	PageType    string   `json:"page_type"`
	Confidence  string   `json:"confidence"`
	Description string   `json:"description"`
	Indicators  []string `json:"indicators"`
	Collectable bool     `json:"collectable"`
}

// Page is a rendered host document together with the ambient session it was
// read from.
type Page struct {
	URL          string         `json:"url"`
	HTML         string         `json:"html"`
	SessionToken string         `json:"session_token,omitempty"`
	Cookies      []*http.Cookie `json:"-"`
}
