package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/buzzboard/internal/content"
	"github.com/playperu/buzzboard/internal/engine"
	"github.com/playperu/buzzboard/internal/room"
	"github.com/playperu/buzzboard/internal/store"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps dependency names to their status.
type HealthResponse map[string]struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
}

type roomPath struct {
	Room string `path:"room" description:"Room name, e.g. 12-meadow."`
}

type gamePath struct {
	ID string `path:"id"`
}

type actionRequest struct {
	roomPath
	HostToken string `header:"X-Host-Token" description:"Required for start_round and next_clue."`
	engine.Envelope
}

type wsRequest struct {
	roomPath
	HostToken string `query:"hostToken"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Buzzboard API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Rooms, game uploads and realtime play for the buzzer quiz.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/games
	createGame, _ := r.NewOperationContext(http.MethodPost, "/api/games")
	createGame.SetSummary("Upload game")
	createGame.SetDescription("Validates and stores a game document. Missing clue values default by tier and round.")
	createGame.AddReqStructure(content.Document{})
	createGame.AddRespStructure(CreateGameResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createGame)

	// GET /api/games
	listGames, _ := r.NewOperationContext(http.MethodGet, "/api/games")
	listGames.SetSummary("List games")
	listGames.AddRespStructure([]store.GameSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listGames)

	// GET /api/games/{id}
	getGame, _ := r.NewOperationContext(http.MethodGet, "/api/games/{id}")
	getGame.SetSummary("Get game")
	getGame.SetDescription("Returns the full game definition, including answers.")
	getGame.AddReqStructure(gamePath{})
	getGame.AddRespStructure(engine.Game{}, openapi.WithHTTPStatus(http.StatusOK))
	getGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getGame)

	// POST /api/rooms
	createRoom, _ := r.NewOperationContext(http.MethodPost, "/api/rooms")
	createRoom.SetSummary("Create room")
	createRoom.SetDescription("Opens a room for a game. The host token is shown once and gates round control.")
	createRoom.AddReqStructure(CreateRoomRequest{})
	createRoom.AddRespStructure(CreateRoomResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	createRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(createRoom)

	// GET /api/rooms/{room}/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{room}/state")
	getState.SetSummary("Room state")
	getState.SetDescription("Returns the latest canonical snapshot of the room.")
	getState.AddReqStructure(roomPath{})
	getState.AddRespStructure(room.Snapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getState)

	// POST /api/rooms/{room}/actions
	postAction, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{room}/actions")
	postAction.SetSummary("Submit action")
	postAction.SetDescription("Applies one action. Actions that are not legal right now are ignored and reported with applied=false.")
	postAction.AddReqStructure(actionRequest{})
	postAction.AddRespStructure(ActionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postAction.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postAction.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postAction.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postAction.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusMisdirectedRequest))
	_ = r.AddOperation(postAction)

	// GET /api/rooms/{room}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{room}/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of room snapshots.")
	getEvents.AddReqStructure(roomPath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/rooms/{room}/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{room}/ws")
	getWS.SetSummary("WebSocket")
	getWS.SetDescription("Upgrades to a WebSocket. Send action envelopes; receive state, result and error frames.")
	getWS.AddReqStructure(wsRequest{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// GET /api/rooms/{room}/qr.png
	getQR, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{room}/qr.png")
	getQR.SetSummary("Join QR code")
	getQR.AddReqStructure(roomPath{})
	getQR.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("image/png"))
	_ = r.AddOperation(getQR)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
