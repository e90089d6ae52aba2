package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/classifier"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/infra"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/reconcile"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/realtime"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/webhook"
)

// Reconciler applies normalized provider callbacks.
type Reconciler interface {
	Reconcile(ctx context.Context, hint *classifier.Hint, upd domain.ProviderUpdate) (reconcile.Outcome, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Config   *infra.Config
	Logger   zerolog.Logger
	Engine   Reconciler
	Verifier *webhook.Verifier
	Decoder  *webhook.Decoder
	Hub      *realtime.Hub
	DB       Pinger

	now func() time.Time
}

// NewApp builds the handler container. A signature verifier is installed
// whenever a webhook secret is configured.
func NewApp(cfg *infra.Config, logger zerolog.Logger, engine Reconciler) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Engine:  engine,
		Decoder: webhook.NewDecoder(),
		now:     time.Now,
	}
	if cfg.WebhookAuthEnabled() {
		v, err := webhook.NewVerifier(cfg.WebhookSecret, cfg.WebhookMaxSkew)
		if err != nil {
			return nil, err
		}
		a.Verifier = v
	}
	return a, nil
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"success": false,
		"code":    errCode,
		"error":   message,
	})
}
