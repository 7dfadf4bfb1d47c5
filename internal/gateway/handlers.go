package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Braavos-Developer/diner-design/internal/domain"
	"github.com/Braavos-Developer/diner-design/internal/repository"
)

func (g *Gateway) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := g.orders.List(r.Context())
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (g *Gateway) createOrder(w http.ResponseWriter, r *http.Request) {
	var in repository.CreateOrderInput
	if !decode(w, r, &in) {
		return
	}
	order, err := g.orders.Create(r.Context(), in)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (g *Gateway) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := g.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (g *Gateway) updateOrder(w http.ResponseWriter, r *http.Request) {
	var in repository.UpdateOrderInput
	if !decode(w, r, &in) {
		return
	}
	order, err := g.orders.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (g *Gateway) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := g.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		g.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) listCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := g.calls.List(r.Context())
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calls)
}

func (g *Gateway) createCall(w http.ResponseWriter, r *http.Request) {
	var in repository.CreateCallInput
	if !decode(w, r, &in) {
		return
	}
	call, err := g.calls.Create(r.Context(), in)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, call)
}

func (g *Gateway) getCall(w http.ResponseWriter, r *http.Request) {
	call, err := g.calls.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (g *Gateway) updateCall(w http.ResponseWriter, r *http.Request) {
	var in repository.UpdateCallInput
	if !decode(w, r, &in) {
		return
	}
	call, err := g.calls.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (g *Gateway) deleteCall(w http.ResponseWriter, r *http.Request) {
	if err := g.calls.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		g.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := g.tables.List(r.Context())
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (g *Gateway) createTable(w http.ResponseWriter, r *http.Request) {
	var in repository.CreateTableInput
	if !decode(w, r, &in) {
		return
	}
	table, err := g.tables.Create(r.Context(), in)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, table)
}

func (g *Gateway) getTable(w http.ResponseWriter, r *http.Request) {
	table, err := g.tables.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (g *Gateway) updateTable(w http.ResponseWriter, r *http.Request) {
	var in repository.UpdateTableInput
	if !decode(w, r, &in) {
		return
	}
	table, err := g.tables.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (g *Gateway) deleteTable(w http.ResponseWriter, r *http.Request) {
	if err := g.tables.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		g.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reset wipes every collection and reseeds the floor. Demo convenience.
func (g *Gateway) reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := g.orders.ClearAll(ctx); err != nil {
		g.writeError(w, err)
		return
	}
	if err := g.calls.ClearAll(ctx); err != nil {
		g.writeError(w, err)
		return
	}
	if err := g.tables.ClearAll(ctx); err != nil {
		g.writeError(w, err)
		return
	}
	if err := g.tables.Seed(ctx); err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		g.lg.Error("request_failed", err, nil)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
