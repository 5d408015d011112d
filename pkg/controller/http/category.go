package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/usecase"
	"github.com/secmon-lab/tedbrain/pkg/utils/errutil"
)

type categoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type categoriesResponse struct {
	Categories []categoryResponse `json:"categories"`
}

type createCategoryRequest struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

type updateCategoryRequest struct {
	UserID      string  `json:"user_id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
}

type assignCategoriesRequest struct {
	UserID      string   `json:"user_id"`
	ItemID      string   `json:"item_id"`
	CategoryIDs []string `json:"category_ids"`
}

type itemsResponse struct {
	Items []itemResponse `json:"items"`
}

func (s *Server) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := s.uc.Category.List(r.Context(), ownerOf(r, ""))
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCategoriesResponse(categories))
}

func (s *Server) getCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id := model.CategoryID(chi.URLParam(r, "categoryID"))
	category, err := s.uc.Category.Get(r.Context(), ownerOf(r, ""), id)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCategoryResponse(category))
}

func (s *Server) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	category, err := s.uc.Category.Create(r.Context(), ownerOf(r, req.UserID), usecase.CreateCategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	})
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toCategoryResponse(category))
}

func (s *Server) updateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	id := model.CategoryID(chi.URLParam(r, "categoryID"))
	category, err := s.uc.Category.Update(r.Context(), ownerOf(r, req.UserID), id, model.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	})
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCategoryResponse(category))
}

func (s *Server) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id := model.CategoryID(chi.URLParam(r, "categoryID"))
	if err := s.uc.Category.Delete(r.Context(), ownerOf(r, ""), id); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"id": string(id), "status": "deleted"})
}

func (s *Server) assignCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	var req assignCategoriesRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	itemID := model.ItemID(req.ItemID)
	if err := s.uc.Category.Assign(r.Context(), ownerOf(r, req.UserID), itemID, toCategoryIDs(req.CategoryIDs)); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"item_id": req.ItemID, "category_ids": req.CategoryIDs})
}

func (s *Server) itemCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	itemID := model.ItemID(chi.URLParam(r, "itemID"))
	categories, err := s.uc.Category.GetItemCategories(r.Context(), ownerOf(r, ""), itemID)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCategoriesResponse(categories))
}

func (s *Server) categoryItemsHandler(w http.ResponseWriter, r *http.Request) {
	id := model.CategoryID(chi.URLParam(r, "categoryID"))
	items, err := s.uc.Category.GetItemsByCategory(r.Context(), ownerOf(r, ""), id)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	resp := itemsResponse{Items: make([]itemResponse, len(items))}
	for i, item := range items {
		resp.Items[i] = toItemResponse(item)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func toCategoryResponse(c *model.Category) categoryResponse {
	return categoryResponse{
		ID:          string(c.ID),
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		Color:       c.Color,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toCategoriesResponse(categories []*model.Category) categoriesResponse {
	resp := categoriesResponse{Categories: make([]categoryResponse, len(categories))}
	for i, c := range categories {
		resp.Categories[i] = toCategoryResponse(c)
	}
	return resp
}
