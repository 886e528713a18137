package handler

import (
	"net/http"

	"github.com/freeeve/repower/internal/auth"
)

// Handlers groups the endpoint handlers served by NewRouter.
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Match        *MatchHandler
	Command      *CommandHandler
	Turn         *TurnHandler
	Catalog      *CatalogHandler
	Notification *NotificationHandler
	WS           *WSHandler
}

// NewRouter registers every route. Everything under /api/v1 except the
// websocket requires an access token.
func NewRouter(h Handlers, jwtMgr *auth.JWTManager) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth (public)
	mux.HandleFunc("GET /auth/google/login", h.Auth.ProviderLogin)
	mux.HandleFunc("GET /auth/google/callback", h.Auth.ProviderCallback)
	mux.HandleFunc("POST /auth/refresh", h.Auth.RefreshToken)
	mux.HandleFunc("POST /auth/dev", h.Auth.DevLogin)

	api := http.NewServeMux()
	api.HandleFunc("GET /users/me", h.User.GetMe)
	api.HandleFunc("POST /users/me", h.User.UpdateMe)
	api.HandleFunc("GET /users/{id}", h.User.GetUser)

	api.HandleFunc("GET /maps", h.Catalog.ListMaps)
	api.HandleFunc("GET /maps/{id}", h.Catalog.GetMap)
	api.HandleFunc("GET /catalog", h.Catalog.GetCatalog)

	api.HandleFunc("POST /matches", h.Match.CreateMatch)
	api.HandleFunc("GET /matches", h.Match.ListMatches)
	api.HandleFunc("GET /matches/{id}", h.Match.GetMatch)
	api.HandleFunc("POST /matches/{id}/join", h.Match.JoinMatch)
	api.HandleFunc("POST /matches/{id}/leave", h.Match.Leave())
	api.HandleFunc("POST /matches/{id}/ready", h.Match.Ready())
	api.HandleFunc("POST /matches/{id}/pause", h.Match.Pause())
	api.HandleFunc("POST /matches/{id}/resume", h.Match.Resume())
	api.HandleFunc("POST /matches/{id}/abort", h.Match.Abort())
	api.HandleFunc("POST /matches/{id}/public", h.Match.SetPublic(true))
	api.HandleFunc("POST /matches/{id}/private", h.Match.SetPublic(false))
	api.HandleFunc("DELETE /matches/{id}/players/{playerId}", h.Match.KickPlayer)

	api.HandleFunc("GET /matches/{id}/commands", h.Command.ListCommands)
	api.HandleFunc("POST /matches/{id}/commands", h.Command.SubmitCommand)
	api.HandleFunc("DELETE /matches/{id}/commands/{order}", h.Command.WithdrawCommand)

	api.HandleFunc("GET /matches/{id}/turns", h.Turn.ListTurns)
	api.HandleFunc("GET /matches/{id}/turns/current", h.Turn.CurrentTurn)
	api.HandleFunc("GET /matches/{id}/turns/{number}/commands", h.Turn.TurnCommands)
	api.HandleFunc("GET /matches/{id}/turns/{number}/battles", h.Turn.TurnBattles)

	api.HandleFunc("GET /notifications", h.Notification.List)
	api.HandleFunc("POST /notifications/read", h.Notification.MarkAllRead)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", auth.Middleware(jwtMgr)(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", h.WS.ServeWS)
	return mux
}
