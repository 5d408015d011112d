package errutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/utils/logging"
)

// Handle logs the error with a message and reports it to Sentry.
// It returns err unchanged so that callers can keep propagating it.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	log(ctx, msg, err)
	report(ctx, err)
	return err
}

// Status maps an error class to the HTTP status code shown to clients
func Status(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateName), errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidCategory),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrUnsupportedMedia):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON body of an error response
type ErrorResponse struct {
	Error       string   `json:"error"`
	CategoryIDs []string `json:"category_ids,omitempty"`
}

// HandleHTTP logs the error and writes a JSON error response. Server side
// failures are reported to Sentry and never expose their message.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	status := Status(err)
	resp := ErrorResponse{Error: publicMessage(err, status)}

	var ice *model.InvalidCategoryError
	if errors.As(err, &ice) {
		for _, id := range ice.IDs {
			resp.CategoryIDs = append(resp.CategoryIDs, string(id))
		}
	}

	if status >= http.StatusInternalServerError {
		log(ctx, "HTTP error", err, "status", status)
		report(ctx, err)
	} else {
		logging.From(ctx).Info("HTTP client error", "status", status, "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func publicMessage(err error, status int) string {
	switch status {
	case http.StatusNotFound:
		return "not found"
	case http.StatusConflict:
		if errors.Is(err, model.ErrDuplicateName) {
			return "category name already exists"
		}
		return "conflict"
	case http.StatusBadRequest:
		switch {
		case errors.Is(err, model.ErrInvalidCategory):
			return "unknown category"
		case errors.Is(err, model.ErrUnsupportedMedia):
			return "unsupported media type"
		}
		if ge := goerr.Unwrap(err); ge != nil {
			return ge.Error()
		}
		return "invalid request"
	case http.StatusRequestEntityTooLarge:
		return "file too large"
	default:
		return "internal server error"
	}
}

func log(ctx context.Context, msg string, err error, args ...any) {
	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error(msg, append(args,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)...)
	} else {
		logger.Error(msg, append(args, "error", err.Error())...)
	}
}

func report(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
