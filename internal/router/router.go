package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"medication-reminder/internal/service"
)

type medicationView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage"`
	Frequency string    `json:"frequency"`
	Time      time.Time `json:"time"`
}

type formView struct {
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage"`
	Frequency string    `json:"frequency"`
	Time      time.Time `json:"time"`
	MenuOpen  bool      `json:"menu_open"`
}

// NewRouter exposes a read-only view of the reminder screen.
func NewRouter(screen *service.Screen) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/medications", func(w http.ResponseWriter, _ *http.Request) {
		items := screen.Items()
		out := make([]medicationView, 0, len(items))
		for _, item := range items {
			out = append(out, medicationView{
				ID:        item.ID.String(),
				Name:      item.Name,
				Dosage:    item.Dosage,
				Frequency: item.Frequency.String(),
				Time:      item.Time.In(screen.Location()),
			})
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/form", func(w http.ResponseWriter, _ *http.Request) {
		form := screen.Form()
		writeJSON(w, http.StatusOK, formView{
			Name:      form.Name,
			Dosage:    form.Dosage,
			Frequency: form.Frequency.String(),
			Time:      form.Time.In(screen.Location()),
			MenuOpen:  screen.MenuOpen(),
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
