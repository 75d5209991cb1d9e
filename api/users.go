package api

import (
	"net/http"

	"github.com/billbatista/acasinha-chores/category"
	"github.com/billbatista/acasinha-chores/eventlogger"
	"github.com/billbatista/acasinha-chores/item"
	"github.com/billbatista/acasinha-chores/user"
	"github.com/google/uuid"
)

type userView struct {
	user.User
	HasPIN bool `json:"has_pin"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Users.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{User: u, HasPIN: u.HasPIN()})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		PIN  string `json:"pin"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := s.Users.Register(r.Context(), req.Name, req.PIN)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.log(r, eventlogger.TypeUserRegistered, map[string]string{
		"user_id": u.ID.String(),
		"name":    u.Name,
	})
	writeJSON(w, http.StatusCreated, userView{User: *u, HasPIN: u.HasPIN()})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.Categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Icon string `json:"icon"`
		Kind string `json:"kind"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := s.Categories.Create(r.Context(), req.Name, req.Icon, category.Kind(req.Kind))
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.log(r, eventlogger.TypeCategoryCreated, map[string]string{
		"category_id": c.ID.String(),
		"name":        c.Name,
		"kind":        string(c.Kind),
	})
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.Items.ListWithStock(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Icon string `json:"icon"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	it, err := s.Items.Create(r.Context(), req.Name, req.Icon)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.log(r, eventlogger.TypeItemCreated, map[string]string{
		"item_id": it.ID.String(),
		"name":    it.Name,
	})
	writeJSON(w, http.StatusCreated, item.WithStock{Item: *it})
}

func (s *Server) setStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID uuid.UUID `json:"item_id"`
		Stock  int       `json:"stock"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	stock, err := s.Items.SetStock(r.Context(), req.ItemID, req.Stock)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.log(r, eventlogger.TypeStockSet, stock)
	writeJSON(w, http.StatusCreated, stock)
}
