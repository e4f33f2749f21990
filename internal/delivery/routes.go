package delivery

import (
	"net/http"
	"time"

	"github.com/Vovarama1992/go-utils/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// NewRouter собирает админский HTTP API.
func NewRouter(h *Handler, adminToken string, rateLimit int) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.With(httputil.RecoverMiddleware).Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	RegisterRoutes(r, h, adminToken, rateLimit)
	return r
}

func RegisterRoutes(r chi.Router, h *Handler, adminToken string, rateLimit int) {
	// --- вебхук оплаты, без токена ---
	if h.packages != nil {
		r.Group(func(pub chi.Router) {
			pub.Use(httputil.RecoverMiddleware)
			if rateLimit > 0 {
				pub.Use(httprate.LimitByIP(rateLimit, time.Minute))
			}
			pub.Post("/payments/yookassa", h.YooKassaWebhook)
		})
	}

	r.Group(func(pr chi.Router) {
		pr.Use(httputil.RecoverMiddleware)
		if rateLimit > 0 {
			pr.Use(httprate.LimitByIP(rateLimit, time.Minute))
		}
		pr.Use(AuthMiddleware(adminToken))

		// --- задачи ---
		pr.Post("/tasks", h.CreateTask)
		pr.Get("/tasks/{task_id}", h.GetTask)
		pr.Get("/users/{user_id}/tasks", h.ListUserTasks)

		// --- балансы ---
		pr.Get("/balances/{user_id}", h.GetBalance)
		pr.Post("/balances/{user_id}/topup", h.TopUp)

		// --- пакеты кредитов ---
		if h.packages != nil {
			pr.Get("/packages", h.ListPackages)
			pr.Post("/packages", h.CreatePackage)
			pr.Patch("/packages/{id}", h.UpdatePackage)
		}

		if h.jokes != nil {
			pr.Post("/jokes", h.CreateJoke)
		}
	})
}
