package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/usecase"
	"github.com/secmon-lab/tedbrain/pkg/utils/errutil"
	"github.com/secmon-lab/tedbrain/pkg/utils/safe"
)

// multipart overhead allowed on top of the media size limit
const uploadEnvelopeBytes = 1 << 20

type addItemRequest struct {
	UserID      string         `json:"user_id"`
	Content     string         `json:"content"`
	Source      string         `json:"source"`
	Metadata    map[string]any `json:"metadata"`
	CategoryIDs []string       `json:"category_ids"`
}

type addItemResponse struct {
	ItemID string `json:"item_id"`
	Status string `json:"status"`
}

type queryRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
}

type queryResult struct {
	ItemID     string         `json:"item_id"`
	Content    string         `json:"content"`
	Source     string         `json:"source"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
	CreatedAt  time.Time      `json:"created_at"`
}

type queryResponse struct {
	Results []queryResult `json:"results"`
}

type statusResponse struct {
	UserID     string         `json:"user_id"`
	TotalItems int            `json:"total_items"`
	Embeddings int            `json:"embeddings"`
	Sources    map[string]int `json:"sources"`
	Categories int            `json:"categories"`
	LastAdded  *time.Time     `json:"last_added"`
	SizeKB     float64        `json:"size_kb"`
}

type itemResponse struct {
	ItemID    string         `json:"item_id"`
	Content   string         `json:"content"`
	Source    string         `json:"source"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

func (s *Server) addItemHandler(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	categoryIDs := toCategoryIDs(req.CategoryIDs)
	// category_ids inside metadata is accepted for older clients
	if raw, ok := req.Metadata["category_ids"].([]any); ok {
		for _, v := range raw {
			if id, ok := v.(string); ok {
				categoryIDs = append(categoryIDs, model.CategoryID(id))
			}
		}
		delete(req.Metadata, "category_ids")
	}

	result, err := s.uc.Brain.AddItem(r.Context(), ownerOf(r, req.UserID), usecase.AddItemInput{
		Content:     req.Content,
		Source:      model.Source(req.Source),
		Metadata:    req.Metadata,
		CategoryIDs: categoryIDs,
	})
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	writeJSON(w, r, http.StatusOK, addItemResponse{
		ItemID: string(result.ItemID),
		Status: result.Status,
	})
}

func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	results, err := s.uc.Brain.QueryItems(r.Context(), ownerOf(r, req.UserID), req.Query, req.Limit)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	resp := queryResponse{Results: make([]queryResult, len(results))}
	for i, res := range results {
		resp.Results[i] = queryResult{
			ItemID:     string(res.ItemID),
			Content:    res.Content,
			Source:     string(res.Source),
			Metadata:   res.Metadata,
			Similarity: res.Similarity,
			CreatedAt:  res.CreatedAt,
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) uploadMediaHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+uploadEnvelopeBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrTooLarge, "upload exceeds limit", goerr.V("limit", s.maxUploadBytes)))
			return
		}
		errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrInvalidInput, "invalid multipart form", goerr.V("cause", err.Error())))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrInvalidInput, "file is required"))
		return
	}
	defer safe.Close(ctx, file)

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read upload"))
		return
	}
	if int64(len(data)) > s.maxUploadBytes {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrTooLarge, "upload exceeds limit", goerr.V("limit", s.maxUploadBytes)))
		return
	}

	var categoryIDs []model.CategoryID
	if raw := r.FormValue("category_ids"); raw != "" {
		categoryIDs = toCategoryIDs(strings.Split(raw, ","))
	}

	result, err := s.uc.Brain.AddMedia(ctx, ownerOf(r, r.FormValue("user_id")), usecase.AddMediaInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		CategoryIDs: categoryIDs,
	})
	if err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}

	writeJSON(w, r, http.StatusOK, addItemResponse{
		ItemID: string(result.ItemID),
		Status: result.Status,
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := s.uc.Brain.Status(r.Context(), ownerOf(r, ""))
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	sources := make(map[string]int, len(status.Sources))
	for k, v := range status.Sources {
		sources[string(k)] = v
	}
	writeJSON(w, r, http.StatusOK, statusResponse{
		UserID:     string(status.Owner),
		TotalItems: status.TotalItems,
		Embeddings: status.Embeddings,
		Sources:    sources,
		Categories: status.Categories,
		LastAdded:  status.LastAdded,
		SizeKB:     status.SizeKB,
	})
}

func (s *Server) deleteItemHandler(w http.ResponseWriter, r *http.Request) {
	itemID := model.ItemID(chi.URLParam(r, "itemID"))
	if err := s.uc.Brain.DeleteItem(r.Context(), ownerOf(r, ""), itemID); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"item_id": string(itemID), "status": "deleted"})
}

func (s *Server) purgeHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.uc.Brain.Purge(r.Context(), ownerOf(r, ""))
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"deleted": n})
}

// ownerOf picks the owner from the request body, then the user_id query
// parameter, then the default owner
func ownerOf(r *http.Request, fromBody string) model.OwnerID {
	if fromBody != "" {
		return model.OwnerID(fromBody)
	}
	if q := r.URL.Query().Get("user_id"); q != "" {
		return model.OwnerID(q)
	}
	return model.DefaultOwner
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return goerr.Wrap(model.ErrInvalidInput, "invalid JSON body", goerr.V("cause", err.Error()))
	}
	return nil
}

func toCategoryIDs(raw []string) []model.CategoryID {
	ids := make([]model.CategoryID, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			ids = append(ids, model.CategoryID(s))
		}
	}
	return ids
}

func toItemResponse(item *model.Item) itemResponse {
	return itemResponse{
		ItemID:    string(item.ID),
		Content:   item.Content,
		Source:    string(item.Source),
		Metadata:  item.Metadata,
		CreatedAt: item.CreatedAt,
	}
}
