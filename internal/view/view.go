// Package view renders the server-side HTML pages from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/session"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var files embed.FS

// Page names
const (
	PageProducts = "products"
	PageProduct  = "product"
	PageCart     = "cart"
	PagePayment  = "payment"
	PageReset    = "reset"
	PageError    = "error"
)

var pageNames = []string{PageProducts, PageProduct, PageCart, PagePayment, PageReset, PageError}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

// Page is the data every template receives
type Page struct {
	Title   string
	Owner   domain.Owner
	Flashes []session.Flash
	Data    interface{}
}

// ProductsData feeds the product listing
type ProductsData struct {
	Page         *domain.ProductPage
	Categories   []*domain.Category
	CategorySlug string
	Query        string
	PrevPage     int
	NextPage     int
}

// PageURL builds the listing URL of another page with the same filter
func (d ProductsData) PageURL(page int) string {
	q := url.Values{}
	if d.CategorySlug != "" {
		q.Set("category", d.CategorySlug)
	}
	if d.Query != "" {
		q.Set("q", d.Query)
	}
	q.Set("page", strconv.Itoa(page))
	return "/products?" + q.Encode()
}

// ImageView is a product image with its public URL
type ImageView struct {
	URL    string
	IsMain bool
}

// ProductData feeds the product page
type ProductData struct {
	Product *domain.Product
	Images  []ImageView
}

// PaymentData feeds the payment outcome page. Result is nil when the payment did not go through.
type PaymentData struct {
	Result   *domain.PaymentResult
	Message  string
	Retry    bool
	RetryURL string
}

// ResetData feeds the password reset form
type ResetData struct {
	Token string
}

// ErrorData feeds the error page. Detail is only filled in debug mode.
type ErrorData struct {
	Status     int
	StatusText string
	Message    string
	Detail     string
}

// Renderer executes the page templates
type Renderer struct {
	pages  map[string]*template.Template
	debug  bool
	logger *zap.Logger
}

// New parses every page together with the shared layout
func New(debug bool, logger *zap.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{pages: pages, debug: debug, logger: logger}, nil
}

// Render writes a page. The template runs into a buffer so a failing template never sends a partial page.
func (v *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	tmpl, ok := v.pages[name]
	if !ok {
		v.logger.Error("Unknown template", zap.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		v.logger.Error("Failed to render template", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// Error renders the error page. The error text is shown only in debug mode.
func (v *Renderer) Error(w http.ResponseWriter, status int, message string, err error, page Page) {
	data := ErrorData{
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    message,
	}
	if v.debug && err != nil {
		data.Detail = err.Error()
	}

	page.Title = data.StatusText
	page.Data = data
	v.Render(w, status, PageError, page)
}
