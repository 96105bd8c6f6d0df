// Package api exposes the bridge host's admin API: stack inspection,
// operator-driven stack operations, message injection, and metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// Service is the slice of the page host the admin API drives.
type Service interface {
	Pages() []wire.PageInfo
	Push(ctx context.Context, url, title string, data json.RawMessage) (wire.StackResult, error)
	Pop(ctx context.Context, result json.RawMessage, delta int) (wire.StackResult, error)
	PopToRoot(ctx context.Context) (wire.StackResult, error)
	PostMessage(from, target string, payload json.RawMessage) error
}

// Stats is a point-in-time snapshot of bridge health.
type Stats struct {
	Pages          int   `json:"pages"`
	BoundChannels  int   `json:"bound_channels"`
	InFlight       int64 `json:"in_flight_requests"`
	PendingContent int   `json:"pending_content_requests"`
}

// StatsFunc supplies Stats; wiring lives in the daemon.
type StatsFunc func() Stats

type stackOutput struct {
	Body wire.StackResult
}

// NewServer builds the admin API handler.
func NewServer(svc Service, stats StatsFunc) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Webview Bridge Admin API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Handle("/metrics", promhttp.Handler())

	registerHandlers(api, svc, stats)
	return router
}

func registerHandlers(api huma.API, svc Service, stats StatsFunc) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type statsOutput struct {
		Body Stats
	}
	huma.Register(api, huma.Operation{OperationID: "stats", Method: http.MethodGet, Path: "/api/v1/stats", Summary: "Bridge statistics", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*statsOutput, error) {
			out := &statsOutput{}
			out.Body = stats()
			return out, nil
		})

	type pagesOutput struct {
		Body struct {
			Pages []wire.PageInfo `json:"pages"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-pages", Method: http.MethodGet, Path: "/api/v1/pages", Summary: "List the confirmed page stack", Tags: []string{"Pages"}},
		func(ctx context.Context, input *struct{}) (*pagesOutput, error) {
			out := &pagesOutput{}
			out.Body.Pages = svc.Pages()
			return out, nil
		})

	type pushInput struct {
		Body struct {
			URL   string          `json:"url" doc:"Content URL for the new surface"`
			Title string          `json:"title,omitempty"`
			Data  json.RawMessage `json:"data,omitempty" doc:"Launch data delivered to the new page as an event"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "push-page", Method: http.MethodPost, Path: "/api/v1/pages", Summary: "Push a page onto the stack", Tags: []string{"Pages"}},
		func(ctx context.Context, input *pushInput) (*stackOutput, error) {
			res, err := svc.Push(ctx, input.Body.URL, input.Body.Title, input.Body.Data)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stackOutput{Body: res}, nil
		})

	type popInput struct {
		Body struct {
			Delta  int             `json:"delta,omitempty" doc:"Pages to remove, defaults to 1"`
			Result json.RawMessage `json:"result,omitempty" doc:"Result delivered to the page becoming current"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "pop-pages", Method: http.MethodPost, Path: "/api/v1/pages/pop", Summary: "Pop pages off the stack", Tags: []string{"Pages"}},
		func(ctx context.Context, input *popInput) (*stackOutput, error) {
			delta := input.Body.Delta
			if delta == 0 {
				delta = 1
			}
			res, err := svc.Pop(ctx, input.Body.Result, delta)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stackOutput{Body: res}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "pop-to-root", Method: http.MethodPost, Path: "/api/v1/pages/root", Summary: "Pop every page above the root", Tags: []string{"Pages"}},
		func(ctx context.Context, input *struct{}) (*stackOutput, error) {
			res, err := svc.PopToRoot(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stackOutput{Body: res}, nil
		})

	type messageInput struct {
		Body struct {
			TargetPageID string          `json:"targetPageId,omitempty" doc:"Omit to broadcast to every page"`
			Message      json.RawMessage `json:"message"`
		}
	}
	type messageOutput struct {
		Body struct {
			Accepted bool `json:"accepted"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "post-message", Method: http.MethodPost, Path: "/api/v1/messages", Summary: "Inject a cross-page message from the host", Tags: []string{"Messages"}},
		func(ctx context.Context, input *messageInput) (*messageOutput, error) {
			if err := svc.PostMessage("", input.Body.TargetPageID, input.Body.Message); err != nil {
				return nil, mapErr(err)
			}
			out := &messageOutput{}
			out.Body.Accepted = true
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if coded, ok := wire.AsCoded(err); ok {
		switch coded.Code {
		case wire.CodeInvalidParams:
			return huma.Error400BadRequest(coded.Message)
		case wire.CodePageNotFound:
			return huma.Error404NotFound(coded.Message)
		case wire.CodeStackUnderflow:
			return huma.Error409Conflict(coded.Message)
		case wire.CodePermissionDenied:
			return huma.Error403Forbidden(coded.Message)
		case wire.CodeTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case wire.CodeTransportDestroyed, wire.CodeNotReady:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", wire.CodeName(coded.Code), coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
