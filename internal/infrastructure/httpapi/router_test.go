package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/domain/entities"
	"github.com/ersonp/raices-core/internal/domain/mocks"
	"github.com/ersonp/raices-core/internal/domain/services"
	"github.com/ersonp/raices-core/internal/infrastructure/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func seed(id string, gender entities.Gender, rels ...entities.Relationship) entities.Person {
	if rels == nil {
		rels = []entities.Relationship{}
	}
	return entities.Person{ID: id, FirstName: "First" + id, LastName: "Last", Gender: gender, Relationships: rels}
}

func spouseOf(id string) entities.Relationship {
	return entities.Relationship{ID: "s" + id, PersonID: id, Type: entities.RelationSpouse, Status: entities.StatusCurrent}
}

func setupRouter(t *testing.T, people ...entities.Person) (*gin.Engine, *mocks.PersonStore) {
	t.Helper()
	store := mocks.NewPersonStore(people...)
	mutator := services.NewMutator(store, nil, nil)
	reconciler := services.NewReconciler(store, mutator, nil, nil, 1, services.RepairOptions{})
	tree := handlers.NewTreeHandler(store, mutator, reconciler, nil, handlers.TreeOptions{RejectCycles: true})
	return NewRouter(tree, nil), store
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestCORSPreflight(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodOptions, "/api/graph", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGraphEndpoint(t *testing.T) {
	router, _ := setupRouter(t,
		seed("m1", entities.GenderMale, spouseOf("f1")),
		seed("f1", entities.GenderFemale, spouseOf("m1")),
	)

	w := do(t, router, http.MethodGet, "/api/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var g entities.Graph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "spouse-f1-m1", g.Edges[0].ID)

	w = do(t, router, http.MethodPost, "/api/graph/reload", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPeopleEndpoints(t *testing.T) {
	router, store := setupRouter(t, seed("a", entities.GenderMale))

	t.Run("list", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/people", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var people []entities.Person
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &people))
		assert.Len(t, people, 1)
	})

	t.Run("get", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/people/a", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "a", decode(t, w)["id"])
	})

	t.Run("get missing", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/people/zz", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, string(entities.ErrorTypeNotFound), decode(t, w)["type"])
	})

	t.Run("create", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/people", map[string]any{"firstName": "Rosa", "gender": "FEMALE"})
		require.Equal(t, http.StatusCreated, w.Code)
		id, _ := decode(t, w)["id"].(string)
		require.NotEmpty(t, id)
		assert.NotNil(t, store.Person(id))
	})

	t.Run("update", func(t *testing.T) {
		w := do(t, router, http.MethodPut, "/api/people/a", map[string]any{"firstName": "Andres", "gender": "MALE"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Andres", store.Person("a").FirstName)
	})

	t.Run("update rejected", func(t *testing.T) {
		w := do(t, router, http.MethodPut, "/api/people/a", map[string]any{"gender": "MALE"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, true, decode(t, w)["rejected"])
	})

	t.Run("bad body", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/people", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := do(t, router, http.MethodDelete, "/api/people/a", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Nil(t, store.Person("a"))
	})
}

func TestAddParentAndChildEndpoints(t *testing.T) {
	router, store := setupRouter(t, seed("c", entities.GenderMale))

	w := do(t, router, http.MethodPost, "/api/people/c/parents", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	parentID, _ := decode(t, w)["id"].(string)
	assert.GreaterOrEqual(t, store.Person("c").FindRelationship(parentID, entities.RelationFather), 0)

	w = do(t, router, http.MethodPost, "/api/people/c/children", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	childID, _ := decode(t, w)["id"].(string)
	assert.GreaterOrEqual(t, store.Person("c").FindRelationship(childID, entities.RelationChild), 0)

	w = do(t, router, http.MethodPost, "/api/people/nobody/parents", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectEndpoint(t *testing.T) {
	router, store := setupRouter(t,
		seed("m1", entities.GenderMale),
		seed("m2", entities.GenderMale),
		seed("f1", entities.GenderFemale),
	)

	w := do(t, router, http.MethodPost, "/api/connections", handlers.Connection{
		Source: "m1", Target: "f1", SourceHandle: entities.HandleRight, TargetHandle: entities.HandleLeft,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "spouse-f1-m1", decode(t, w)["id"])

	puts := store.PutCount()
	w = do(t, router, http.MethodPost, "/api/connections", handlers.Connection{
		Source: "m1", Target: "m2", SourceHandle: entities.HandleRight,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, true, decode(t, w)["rejected"])
	assert.Equal(t, puts, store.PutCount())
}

func TestConnectEndpoint_PartialApplication(t *testing.T) {
	router, store := setupRouter(t,
		seed("m1", entities.GenderMale),
		seed("f1", entities.GenderFemale),
	)
	store.PutErrs["m1"] = errors.New("disk full")

	w := do(t, router, http.MethodPost, "/api/connections", handlers.Connection{
		Source: "f1", Target: "m1", SourceHandle: entities.HandleLeft,
	})

	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ADD SPOUSE m1->f1", body["failed"])
	assert.Equal(t, []any{"ADD SPOUSE f1->m1"}, body["applied"])
}

func TestConnectEndpoint_StorageUnavailable(t *testing.T) {
	router, store := setupRouter(t)
	store.Err = errors.New("offline")

	w := do(t, router, http.MethodGet, "/api/graph", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReconnectEndpoint(t *testing.T) {
	router, store := setupRouter(t,
		seed("pOld", entities.GenderMale, entities.Relationship{ID: "r1", PersonID: "c", Type: entities.RelationChild}),
		seed("pNew", entities.GenderFemale),
		seed("c", entities.GenderMale, entities.Relationship{ID: "r2", PersonID: "pOld", Type: entities.RelationFather}),
	)

	w := do(t, router, http.MethodPost, "/api/reconnections", reconnectRequest{
		OldEdge:    entities.LineageEdge("pOld", "c"),
		Connection: handlers.Connection{Source: "pNew", Target: "c"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "e-pNew-c", decode(t, w)["id"])
	assert.GreaterOrEqual(t, store.Person("c").FindRelationship("pNew", entities.RelationMother), 0)
	assert.Less(t, store.Person("c").FindRelationship("pOld", entities.RelationFather), 0)
}

func TestToggleEndpoint(t *testing.T) {
	router, store := setupRouter(t,
		seed("1", entities.GenderMale, spouseOf("2")),
		seed("2", entities.GenderFemale, spouseOf("1")),
	)

	w := do(t, router, http.MethodPost, "/api/edges/spouse-1-2/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FORMER", decode(t, w)["status"])
	assert.Equal(t, entities.StatusFormer, store.Person("2").Relationships[0].Status)

	w = do(t, router, http.MethodPost, "/api/edges/e-1-2/toggle", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDragEndEndpoint(t *testing.T) {
	router, _ := setupRouter(t, seed("s", entities.GenderMale))

	w := do(t, router, http.MethodPost, "/api/drag-end", handlers.DragEnd{Source: "s", SourceHandle: entities.HandleRight, OnPane: true})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "FEMALE", decode(t, w)["gender"])

	w = do(t, router, http.MethodPost, "/api/drag-end", handlers.DragEnd{Source: "s", SourceHandle: entities.HandleBottom, OnPane: true})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMoveNodeEndpoint(t *testing.T) {
	router, _ := setupRouter(t, seed("a", entities.GenderMale))

	w := do(t, router, http.MethodPut, "/api/nodes/a/position", entities.Position{X: 10, Y: 20})
	assert.Equal(t, http.StatusNotFound, w.Code, "canvas not loaded yet")

	do(t, router, http.MethodGet, "/api/graph", nil)
	w = do(t, router, http.MethodPut, "/api/nodes/a/position", entities.Position{X: 10, Y: 20})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/graph", nil)
	var g entities.Graph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, entities.Position{X: 10, Y: 20}, g.Nodes[0].Position)
}

func TestRepairEndpoint(t *testing.T) {
	router, store := setupRouter(t,
		seed("p", entities.GenderMale, entities.Relationship{ID: "r1", PersonID: "c", Type: entities.RelationChild}),
		seed("c", entities.GenderMale),
	)

	w := do(t, router, http.MethodPost, "/api/repair?dry_run=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["dryRun"])
	assert.Zero(t, store.PutCount())

	w = do(t, router, http.MethodPost, "/api/repair", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, store.Person("c").FindRelationship("p", entities.RelationFather), 0)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{entities.NewNotFound("x"), http.StatusNotFound},
		{entities.NewValidation("no"), http.StatusUnprocessableEntity},
		{entities.NewPartialApplication("op", []string{"a"}, "b", entities.NewStorage("put", errors.New("x"))), http.StatusConflict},
		{entities.NewStorage("put", errors.New("x")), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", entities.NewNotFound("x")), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestServer_GracefulShutdown(t *testing.T) {
	store := mocks.NewPersonStore()
	tree := handlers.NewTreeHandler(store, services.NewMutator(store, nil, nil), nil, nil, handlers.TreeOptions{})
	srv := NewServer(config.ServerConfig{Port: "0"}, tree, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
