// Package hotel manages rooms. It is the reference publisher on the bus.
package hotel

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"tenantplane/contracts/tenant"
	"tenantplane/internal/events"
	"tenantplane/internal/module"
	"tenantplane/internal/modules"
	"tenantplane/internal/platform/docstore"
	"tenantplane/internal/tenancy/isolation"
	dErrors "tenantplane/pkg/domain-errors"
	"tenantplane/pkg/platform/httputil"
	"tenantplane/pkg/requestcontext"
	"tenantplane/pkg/validation"
)

const (
	Slug           = "hotel"
	EventRoomAdded = "room.created"
	roomsColl      = "rooms"
)

//go:embed openapi.json
var openAPI []byte

// Schemas lists the collections this module keeps per tenant.
var Schemas = []isolation.Schema{{Collection: roomsColl}}

type Room struct {
	ID        string    `bson:"_id" json:"id"`
	Number    string    `bson:"number" json:"number"`
	Kind      string    `bson:"kind" json:"kind"`
	Rate      float64   `bson:"rate" json:"rate"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// RoomCreated is the payload of room.created.
type RoomCreated struct {
	RoomID string  `json:"room_id"`
	Number string  `json:"number"`
	Rate   float64 `json:"rate"`
}

type createRoomRequest struct {
	Number string  `json:"number" validate:"notblank,max=32"`
	Kind   string  `json:"kind" validate:"omitempty,oneof=single double suite"`
	Rate   float64 `json:"rate" validate:"gte=0"`
}

func (r *createRoomRequest) Normalize() {
	r.Number = strings.TrimSpace(r.Number)
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	if r.Kind == "" {
		r.Kind = "single"
	}
}

func (r *createRoomRequest) Validate() error {
	return validation.Validate(r)
}

type Module struct {
	store  modules.Collections
	bus    modules.Publisher
	logger *slog.Logger
	now    func() time.Time
	routes chi.Router
}

func New(store modules.Collections, bus modules.Publisher, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{store: store, bus: bus, logger: logger, now: time.Now}
	r := chi.NewRouter()
	r.Get("/rooms", m.handleList)
	r.Post("/rooms", m.handleCreate)
	r.Delete("/rooms/{id}", m.handleDelete)
	m.routes = r
	return m
}

func (m *Module) Manifest() module.Manifest {
	return module.Manifest{
		Name:        "Hotel",
		Slug:        Slug,
		Version:     "1.2.0",
		Description: "Room inventory and rates",
		Routes:      m.routes,
		Events:      &events.Contract{Publishes: []string{EventRoomAdded}},
		OnProvision: m.provision,
		OpenAPI:     openAPI,
	}
}

func (m *Module) provision(ctx context.Context, t tenant.ResolvedTenant, logger *slog.Logger) error {
	rooms, err := m.store.Collection(ctx, roomsColl)
	if err != nil {
		return err
	}
	n, err := rooms.Count(ctx, bson.M{})
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "hotel provisioned", "tenant", t.Slug, "existing_rooms", n)
	return nil
}

func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rooms, err := m.store.Collection(ctx, roomsColl)
	if err != nil {
		m.fail(w, r, "open rooms", err)
		return
	}
	docs, err := rooms.Find(ctx, bson.M{}, docstore.WithSort("number", false))
	if err != nil {
		m.fail(w, r, "list rooms", err)
		return
	}
	out, err := docstore.DecodeAll[Room](docs)
	if err != nil {
		m.fail(w, r, "decode rooms", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"rooms": out})
}

func (m *Module) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[createRoomRequest](w, r, m.logger, ctx, requestID)
	if !ok {
		return
	}

	room := Room{
		ID:        uuid.NewString(),
		Number:    req.Number,
		Kind:      req.Kind,
		Rate:      req.Rate,
		CreatedAt: m.now().UTC(),
	}
	doc, err := docstore.Encode(room)
	if err != nil {
		m.fail(w, r, "encode room", err)
		return
	}
	rooms, err := m.store.Collection(ctx, roomsColl)
	if err != nil {
		m.fail(w, r, "open rooms", err)
		return
	}
	if _, err := rooms.InsertOne(ctx, doc); err != nil {
		m.fail(w, r, "insert room", err)
		return
	}

	if err := m.bus.Publish(ctx, Slug, EventRoomAdded, RoomCreated{RoomID: room.ID, Number: room.Number, Rate: room.Rate}); err != nil {
		m.logger.WarnContext(ctx, "room.created not published", "error", err, "request_id", requestID)
	}
	httputil.WriteJSON(w, http.StatusCreated, room)
}

func (m *Module) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rooms, err := m.store.Collection(ctx, roomsColl)
	if err != nil {
		m.fail(w, r, "open rooms", err)
		return
	}
	n, err := rooms.DeleteMany(ctx, bson.M{"_id": chi.URLParam(r, "id")})
	if err != nil {
		m.fail(w, r, "delete room", err)
		return
	}
	if n == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "room not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Module) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	ctx := r.Context()
	m.logger.ErrorContext(ctx, action+" failed",
		"error", err,
		"tenant", requestcontext.TenantSlug(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
