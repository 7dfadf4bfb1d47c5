// Package gateway exposes the repositories over HTTP for the UI glue, plus
// a server-sent-events stream fed by the change bus.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/common/httpx"
	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/domain"
	"github.com/Braavos-Developer/diner-design/internal/repository"
)

type Gateway struct {
	orders *repository.Orders
	calls  *repository.Calls
	tables *repository.Tables
	bus    *bus.Bus
	lg     *logger.Logger
}

func New(orders *repository.Orders, calls *repository.Calls, tables *repository.Tables, b *bus.Bus, lg *logger.Logger) *Gateway {
	return &Gateway{orders: orders, calls: calls, tables: tables, bus: b, lg: lg}
}

func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stream", g.handleStream)
		r.Post("/reset", g.reset)

		r.Get("/orders", g.listOrders)
		r.Post("/orders", g.createOrder)
		r.Get("/orders/{id}", g.getOrder)
		r.Patch("/orders/{id}", g.updateOrder)
		r.Delete("/orders/{id}", g.deleteOrder)

		r.Get("/calls", g.listCalls)
		r.Post("/calls", g.createCall)
		r.Get("/calls/{id}", g.getCall)
		r.Patch("/calls/{id}", g.updateCall)
		r.Delete("/calls/{id}", g.deleteCall)

		r.Get("/tables", g.listTables)
		r.Post("/tables", g.createTable)
		r.Get("/tables/{id}", g.getTable)
		r.Patch("/tables/{id}", g.updateTable)
		r.Delete("/tables/{id}", g.deleteTable)
	})

	return r
}

func (g *Gateway) Run(ctx context.Context, port string) error {
	g.lg.Info("gateway_started", map[string]any{"port": port})
	srv := httpx.New(":"+port, g.Router())
	return srv.Run(ctx)
}

// handleStream pushes one SSE event per collection change. Clients re-fetch
// the collection on every event; the stream itself carries no data.
func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan string, 32)
	forward := func(name string) func(bus.Event) {
		return func(bus.Event) {
			select {
			case events <- name:
			default:
				// Client is behind; it will re-fetch on the next event.
			}
		}
	}
	cancels := []func(){
		g.bus.Subscribe(domain.EventOrdersUpdated, forward(domain.EventOrdersUpdated)),
		g.bus.Subscribe(domain.EventCallsUpdated, forward(domain.EventCallsUpdated)),
		g.bus.Subscribe(domain.EventTablesUpdated, forward(domain.EventTablesUpdated)),
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case name := <-events:
			fmt.Fprintf(w, "event: %s\ndata: {}\n\n", name)
			flusher.Flush()
		}
	}
}
