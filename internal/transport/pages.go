package transport

import (
	"net/http"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/middleware"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/session"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/view"

	"go.uber.org/zap"
)

// pages renders HTML responses for the request's owner, consuming its pending flashes
type pages struct {
	sessions *session.Manager
	views    *view.Renderer
	logger   *zap.Logger
}

func (p pages) page(w http.ResponseWriter, r *http.Request, title string, data interface{}) view.Page {
	owner, _ := middleware.GetOwner(r.Context())

	flashes, err := p.sessions.Flashes(w, r)
	if err != nil {
		p.logger.Warn("Failed to read flashes", zap.Error(err))
	}

	return view.Page{Title: title, Owner: owner, Flashes: flashes, Data: data}
}

func (p pages) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data interface{}) {
	p.views.Render(w, status, name, p.page(w, r, title, data))
}

// redirect flashes a message and sends the browser to target
func (p pages) redirect(w http.ResponseWriter, r *http.Request, kind, message, target string) {
	if err := p.sessions.AddFlash(w, r, kind, message); err != nil {
		p.logger.Warn("Failed to add flash", zap.Error(err))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// fail renders the error page for err
func (p pages) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := middleware.StatusForError(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		p.logger.Error("Page failed",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Error(err),
		)
		message = "Something went wrong on our side. Please try again later."
	}

	p.views.Error(w, status, message, err, p.page(w, r, "", nil))
}
