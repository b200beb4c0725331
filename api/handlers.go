package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"dosa-orders/db/sqlstore"
	"dosa-orders/internal/aggregate"
	"dosa-orders/internal/orders"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListCustomers(r.Context())
	if err != nil {
		s.storeError(w, r, "customer", err)
		return
	}
	resp := make([]CustomerResponse, len(list))
	for i, c := range list {
		resp[i] = toCustomerResponse(c)
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	c, err := s.store.CreateCustomer(r.Context(), sqlstore.Customer{Name: req.Name, Phone: req.Phone})
	if err != nil {
		s.storeError(w, r, "customer", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, toCustomerResponse(*c))
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	c, err := s.store.GetCustomer(r.Context(), id)
	if err != nil {
		s.storeError(w, r, "customer", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, toCustomerResponse(*c))
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req CustomerRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	c, err := s.store.UpdateCustomer(r.Context(), sqlstore.Customer{ID: id, Name: req.Name, Phone: req.Phone})
	if err != nil {
		s.storeError(w, r, "customer", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, toCustomerResponse(*c))
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteCustomer(r.Context(), id); err != nil {
		s.storeError(w, r, "customer", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MessageResponse{Message: "Customer deleted successfully"})
}

// =============================================================================
// ITEMS
// =============================================================================

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListItems(r.Context())
	if err != nil {
		s.storeError(w, r, "item", err)
		return
	}
	resp := make([]ItemResponse, len(list))
	for i, it := range list {
		resp[i] = toItemResponse(it)
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	it, err := s.store.CreateItem(r.Context(), sqlstore.Item{Name: req.Name, Price: *req.Price})
	if err != nil {
		s.storeError(w, r, "item", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, toItemResponse(*it))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	it, err := s.store.GetItem(r.Context(), id)
	if err != nil {
		s.storeError(w, r, "item", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, toItemResponse(*it))
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req ItemRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	it, err := s.store.UpdateItem(r.Context(), sqlstore.Item{ID: id, Name: req.Name, Price: *req.Price})
	if err != nil {
		s.storeError(w, r, "item", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, toItemResponse(*it))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteItem(r.Context(), id); err != nil {
		s.storeError(w, r, "item", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MessageResponse{Message: "Item deleted successfully"})
}

// =============================================================================
// ORDERS
// =============================================================================

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListOrders(r.Context())
	if err != nil {
		s.storeError(w, r, "order", err)
		return
	}
	resp := make([]OrderResponse, len(list))
	for i, o := range list {
		resp[i] = toOrderResponse(o)
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	o, err := s.store.CreateOrder(r.Context(), req.toOrder(0))
	if err != nil {
		s.storeError(w, r, "order", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, toOrderResponse(*o))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	o, err := s.store.GetOrder(r.Context(), id)
	if err != nil {
		s.storeError(w, r, "order", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, toOrderResponse(*o))
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req OrderRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	o, err := s.store.UpdateOrder(r.Context(), req.toOrder(id))
	if err != nil {
		s.storeError(w, r, "order", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, toOrderResponse(*o))
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteOrder(r.Context(), id); err != nil {
		s.storeError(w, r, "order", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MessageResponse{Message: "Order deleted successfully"})
}

// =============================================================================
// AGGREGATE ENDPOINT
// =============================================================================

// handleAggregate runs the ETL over an orders document posted as the body.
// Query parameters count_policy, price_policy and strict tune it.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count, err := aggregate.ParseCountPolicy(q.Get("count_policy"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	price, err := aggregate.ParsePricePolicy(q.Get("price_policy"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	parser := orders.NewParser()
	if v := q.Get("strict"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid strict value %q", v))
			return
		}
		parser.Strict = strict
	}

	records, err := parser.Parse(http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.metrics.orders.Add(float64(len(records)))
	s.jsonResponse(w, http.StatusOK, AggregateResponse{
		Orders:    len(records),
		Customers: aggregate.ExtractCustomers(records),
		Items:     aggregate.AggregateItems(records, aggregate.Options{Count: count, Price: price}),
	})
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.jsonError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

type validator interface {
	validate() error
}

// decodeValid decodes the JSON body into dst and validates it.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, dst validator) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := dst.validate(); err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// storeError maps store sentinels onto status codes.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, entity string, err error) {
	switch {
	case errors.Is(err, sqlstore.ErrNotFound):
		s.jsonError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, sqlstore.ErrInvalid):
		s.jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sqlstore.ErrConflict), errors.Is(err, sqlstore.ErrInUse):
		s.jsonError(w, http.StatusConflict, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("entity", entity).Msg("Store operation failed")
		s.jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
