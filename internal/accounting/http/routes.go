package http

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the ledger endpoints to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.ListAccounts)
	r.Route("/journal-entries", func(r chi.Router) {
		r.Get("/", h.ListEntries)
		r.Post("/", h.CreateEntry)
		r.Get("/{id}", h.GetEntry)
		r.Post("/{id}/approve", h.ApproveEntry)
		r.Post("/{id}/post", h.PostEntry)
		r.Post("/{id}/reverse", h.ReverseEntry)
	})
	r.Post("/rounding-differences", h.HandleRounding)
	r.Route("/balances", func(r chi.Router) {
		r.Get("/accounts/{id}", h.AccountBalance)
		r.Get("/trial-balance", h.TrialBalance)
		r.Get("/subledger/{entityType}", h.SubledgerBalances)
	})
	r.Post("/fiscal-years", h.CreateFiscalYear)
	r.Route("/periods/{id}", func(r chi.Router) {
		r.Post("/lock", h.LockPeriod)
		r.Post("/close", h.ClosePeriod)
		r.Post("/reopen", h.ReopenPeriod)
	})
}
