package web

import (
	"net/http"

	"github.com/JonMunkholm/catalogo/internal/core"
)

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in core.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	p, err := s.service.CreateProduct(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, p, "Producto creado exitosamente")
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, err := s.service.GetProduct(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, p, "")
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var in core.ProductUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	p, err := s.service.UpdateProduct(r.Context(), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, p, "Producto actualizado exitosamente")
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.service.DeleteProduct(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, nil, "Producto eliminado exitosamente")
}

// handleToggleProduct flips activo, the quick hide/show from the product list.
func (s *Server) handleToggleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, err := s.service.ToggleProduct(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	msg := "Producto desactivado"
	if p.Activo {
		msg = "Producto activado"
	}
	respondOK(w, http.StatusOK, p, msg)
}
