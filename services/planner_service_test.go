package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"buildcost/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlannerClient(url string) *PlannerClient {
	return &PlannerClient{
		baseURL: url,
		token:   "test-token",
		client:  &http.Client{Timeout: 2 * time.Second},
	}
}

func TestPlannerEnvelopeFailureShapes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		failed  bool
	}{
		{"clean", `{"result":{"key":"abc"}}`, false},
		{"top level error", `{"error":"scene not found"}`, true},
		{"nested error", `{"result":{"error":{"code":17}}}`, true},
		{"nested errorMessage", `{"result":{"errorMessage":"expired"}}`, true},
		{"null error ignored", `{"error":null,"result":{"key":"abc"}}`, false},
		{"false error ignored", `{"error":false,"result":{"key":"abc"}}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var envelope plannerEnvelope
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &envelope))
			if tc.failed {
				assert.NotEmpty(t, envelope.failure())
			} else {
				assert.Empty(t, envelope.failure())
			}
		})
	}
}

func TestGetSceneByKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/scene/abc123", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"result":{"data":{"build":{"1":2},"buildDoorsAndWindows":{"D1":1}}}}`))
	}))
	defer srv.Close()

	scene, err := testPlannerClient(srv.URL).GetSceneByKey(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 2.0, scene.Build[1])
	assert.Equal(t, 1.0, scene.BuildDoorsAndWindows["D1"])
}

func TestListScenes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/scene", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"result":{"data":[{"key":"abc123","name":"lakeside","thumbnail":"https://img/abc123.jpg"},{"key":"def456","name":"cabin","thumbnail":""}]}}`))
	}))
	defer srv.Close()

	scenes, err := testPlannerClient(srv.URL).ListScenes(context.Background())

	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, "abc123", scenes[0].Key)
	assert.Equal(t, "lakeside", scenes[0].Name)
	assert.Equal(t, "https://img/abc123.jpg", scenes[0].Thumbnail)
	assert.Equal(t, "def456", scenes[1].Key)
}

func TestListScenesErrorPayloadDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"token expired"}`))
	}))
	defer srv.Close()

	_, err := testPlannerClient(srv.URL).ListScenes(context.Background())

	require.Error(t, err)
	assert.True(t, models.IsUpstreamDegraded(err))
}

func TestGetSceneByKeyErrorPayloadDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"errorMessage":"scene expired"}}`))
	}))
	defer srv.Close()

	_, err := testPlannerClient(srv.URL).GetSceneByKey(context.Background(), "abc123")

	require.Error(t, err)
	assert.True(t, models.IsUpstreamDegraded(err))
}

func TestGetSceneByKeyStatusDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testPlannerClient(srv.URL).GetSceneByKey(context.Background(), "abc123")

	require.Error(t, err)
	assert.True(t, models.IsUpstreamDegraded(err))
}

func TestCreateScene(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "lakeside/0042", body["name"])
		w.Write([]byte(`{"result":{"key":"fresh-key"}}`))
	}))
	defer srv.Close()

	key, err := testPlannerClient(srv.URL).CreateScene(context.Background(), "lakeside/0042")

	require.NoError(t, err)
	assert.Equal(t, "fresh-key", key)
}

func reconcilerFixture() (*PlannerReconciler, ReconcileInput) {
	wallRecipe := []models.ProductResultUsage{{ProductResultID: 100, Count: 1}}
	wallDemolishRecipe := []models.ProductResultUsage{{ProductResultID: 101, Count: 1}}
	doorRecipe := []models.ProductResultUsage{{ProductResultID: 200, Count: 1}}
	windowRecipe := []models.ProductResultUsage{{ProductResultID: 300, Count: 1}}

	wall := &models.BuildingElement{ID: 1, Name: "Wall", ProductResults: wallRecipe, DemolishedProductResults: wallDemolishRecipe}
	slab := &models.BuildingElement{ID: 2, Name: "Slab", ProductResults: wallRecipe}
	door := &models.BuildingElement{ID: 7, Name: "Door", PlannerID: "D1", ProductResults: doorRecipe}
	window := &models.BuildingElement{ID: 8, Name: "Window", ProductResults: windowRecipe, DemolishedProductResults: []models.ProductResultUsage{{ProductResultID: 301, Count: 1}}}

	r := NewPlannerReconciler(models.PlannerCatalog{
		DoorIDs:   map[string]bool{"D1": true},
		WindowIDs: map[string]bool{"W1": true, "W2": true},
	})
	in := ReconcileInput{
		ByID:          map[int]*models.BuildingElement{1: wall, 2: slab},
		ByPlannerID:   map[string]*models.BuildingElement{"D1": door},
		WindowElement: window,
	}
	return r, in
}

func TestReconcileOrderAndWindowAggregation(t *testing.T) {
	r, in := reconcilerFixture()
	in.Scene = &models.PlannerScene{
		Build: map[int]float64{2: 3, 1: 4},
		BuildDoorsAndWindows: map[string]float64{
			"W2": 3,
			"D1": 1,
			"W1": 2,
		},
	}
	in.PreservedBuild = []models.BuildingElementUsage{
		{BuildingElementID: 50, Count: 1, From3D: true},
	}

	build, demolish := r.Reconcile(in)

	assert.Empty(t, demolish)
	require.Len(t, build, 5)

	// Preserved usages first, then plain elements by id, then doors, then
	// the single aggregated window.
	assert.Equal(t, 50, build[0].BuildingElementID)
	assert.True(t, build[0].From3D)

	assert.Equal(t, 1, build[1].BuildingElementID)
	assert.Equal(t, 4.0, build[1].Count)
	assert.False(t, build[1].From3D)

	assert.Equal(t, 2, build[2].BuildingElementID)
	assert.Equal(t, 3.0, build[2].Count)

	assert.Equal(t, 7, build[3].BuildingElementID)
	assert.Equal(t, 1.0, build[3].Count)

	window := build[4]
	assert.Equal(t, 8, window.BuildingElementID)
	assert.Equal(t, 5.0, window.Count)
	require.Len(t, window.ProductResults, 1)
	assert.Equal(t, 300, window.ProductResults[0].ProductResultID)
}

func TestReconcileDemolishUsesDemolishRecipeExceptWindows(t *testing.T) {
	r, in := reconcilerFixture()
	in.Scene = &models.PlannerScene{
		Demolish:                map[int]float64{1: 2},
		DemolishDoorsAndWindows: map[string]float64{"W1": 4},
	}

	build, demolish := r.Reconcile(in)

	assert.Empty(t, build)
	require.Len(t, demolish, 2)

	wall := demolish[0]
	assert.True(t, wall.Demolished)
	require.Len(t, wall.ProductResults, 1)
	assert.Equal(t, 101, wall.ProductResults[0].ProductResultID)

	// The aggregated window always carries the build recipe, even on the
	// demolish side.
	window := demolish[1]
	assert.True(t, window.Demolished)
	assert.Equal(t, 4.0, window.Count)
	require.Len(t, window.ProductResults, 1)
	assert.Equal(t, 300, window.ProductResults[0].ProductResultID)
}

func TestReconcileSkipsUnknownIDs(t *testing.T) {
	r, in := reconcilerFixture()
	in.Scene = &models.PlannerScene{
		Build:                map[int]float64{99: 5},
		BuildDoorsAndWindows: map[string]float64{"D9": 2, "X1": 3},
	}

	build, demolish := r.Reconcile(in)

	assert.Empty(t, build)
	assert.Empty(t, demolish)
}

func TestReconcileNoWindowWhenTotalZero(t *testing.T) {
	r, in := reconcilerFixture()
	in.Scene = &models.PlannerScene{
		BuildDoorsAndWindows: map[string]float64{"W1": 0},
	}

	build, _ := r.Reconcile(in)

	assert.Empty(t, build)
}

func TestReconcileNilSceneKeepsPreserved(t *testing.T) {
	r, in := reconcilerFixture()
	in.PreservedBuild = []models.BuildingElementUsage{{BuildingElementID: 1, From3D: true}}

	build, demolish := r.Reconcile(in)

	assert.Equal(t, in.PreservedBuild, build)
	assert.Empty(t, demolish)
}
