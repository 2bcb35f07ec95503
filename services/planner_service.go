package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"time"

	"buildcost/models"
)

// PlannerClient talks to the external 3D planner API. Every method treats the
// planner as best-effort auxiliary data; callers decide whether a failure is
// fatal for their flow.
type PlannerClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewPlannerClient() *PlannerClient {
	return &PlannerClient{
		baseURL: os.Getenv("PLANNER_BASE_URL"),
		token:   os.Getenv("PLANNER_API_TOKEN"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// plannerEnvelope covers both error payload shapes the planner is known to
// produce: a top-level {"error": ...} and a nested
// {"result": {"error": ...}} / {"result": {"errorMessage": ...}}.
type plannerEnvelope struct {
	Error  json.RawMessage `json:"error"`
	Result struct {
		Key          string          `json:"key"`
		Error        json.RawMessage `json:"error"`
		ErrorMessage string          `json:"errorMessage"`
		Data         json.RawMessage `json:"data"`
	} `json:"result"`
}

func (e *plannerEnvelope) failure() string {
	if len(e.Error) > 0 && string(e.Error) != "null" && string(e.Error) != "false" {
		return string(e.Error)
	}
	if len(e.Result.Error) > 0 && string(e.Result.Error) != "null" && string(e.Result.Error) != "false" {
		return string(e.Result.Error)
	}
	if e.Result.ErrorMessage != "" {
		return e.Result.ErrorMessage
	}
	return ""
}

func (pc *PlannerClient) do(ctx context.Context, method, path string, body interface{}) (*plannerEnvelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode planner request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, pc.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build planner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if pc.token != "" {
		req.Header.Set("Authorization", "Bearer "+pc.token)
	}

	resp, err := pc.client.Do(req)
	if err != nil {
		return nil, models.ErrUpstreamDegraded(fmt.Sprintf("planner unreachable: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.ErrUpstreamDegraded(fmt.Sprintf("planner response unreadable: %v", err))
	}
	if resp.StatusCode >= 400 {
		return nil, models.ErrUpstreamDegraded(fmt.Sprintf("planner returned status %d", resp.StatusCode))
	}

	var envelope plannerEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, models.ErrUpstreamDegraded(fmt.Sprintf("planner payload undecodable: %v", err))
	}
	if reason := envelope.failure(); reason != "" {
		return nil, models.ErrUpstreamDegraded("planner error payload: " + reason)
	}
	return &envelope, nil
}

// GetSceneByKey fetches the four id->count maps of a planner scene.
func (pc *PlannerClient) GetSceneByKey(ctx context.Context, key string) (*models.PlannerScene, error) {
	envelope, err := pc.do(ctx, http.MethodGet, "/api/scene/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, err
	}

	var scene models.PlannerScene
	if len(envelope.Result.Data) > 0 {
		if err := json.Unmarshal(envelope.Result.Data, &scene); err != nil {
			return nil, models.ErrUpstreamDegraded(fmt.Sprintf("planner scene undecodable: %v", err))
		}
	}
	return &scene, nil
}

// ListScenes fetches the scene listing for the configured planner account.
func (pc *PlannerClient) ListScenes(ctx context.Context) ([]models.PlannerSceneInfo, error) {
	envelope, err := pc.do(ctx, http.MethodGet, "/api/scene", nil)
	if err != nil {
		return nil, err
	}

	var scenes []models.PlannerSceneInfo
	if len(envelope.Result.Data) > 0 {
		if err := json.Unmarshal(envelope.Result.Data, &scenes); err != nil {
			return nil, models.ErrUpstreamDegraded(fmt.Sprintf("planner scene list undecodable: %v", err))
		}
	}
	return scenes, nil
}

// CreateScene registers a new scene and returns its key.
func (pc *PlannerClient) CreateScene(ctx context.Context, name string) (string, error) {
	envelope, err := pc.do(ctx, http.MethodPost, "/api/scene", map[string]string{"name": name})
	if err != nil {
		return "", err
	}
	if envelope.Result.Key == "" {
		return "", models.ErrUpstreamDegraded("planner returned no scene key")
	}
	return envelope.Result.Key, nil
}

// UpdateSceneName renames the scene behind key.
func (pc *PlannerClient) UpdateSceneName(ctx context.Context, key, name string) error {
	_, err := pc.do(ctx, http.MethodPut, "/api/scene/"+url.PathEscape(key), map[string]string{"name": name})
	return err
}

// ArchiveScene marks the scene deleted on the planner side.
func (pc *PlannerClient) ArchiveScene(ctx context.Context, key string) error {
	_, err := pc.do(ctx, http.MethodDelete, "/api/scene/"+url.PathEscape(key), nil)
	return err
}

// PlannerReconciler turns planner scenes into live element lists. The catalog
// membership tables deciding which planner ids are doors and which are
// windows are injected at construction.
type PlannerReconciler struct {
	catalog models.PlannerCatalog
}

func NewPlannerReconciler(catalog models.PlannerCatalog) *PlannerReconciler {
	return &PlannerReconciler{catalog: catalog}
}

// ReconcileInput carries a scene plus everything already resolved by the
// caller. ByID resolves plain scene ids, ByPlannerID resolves door ids by the
// catalog's external planner identifier. Preserved usages are the ones
// already marked from3D on the project; they pass through verbatim.
type ReconcileInput struct {
	Scene             *models.PlannerScene
	PreservedBuild    []models.BuildingElementUsage
	PreservedDemolish []models.BuildingElementUsage
	ByID              map[int]*models.BuildingElement
	ByPlannerID       map[string]*models.BuildingElement
	WindowElement     *models.BuildingElement
}

// Reconcile computes the project's new live build and demolish lists from a
// planner scene. Output order per side: preserved from3D usages, plain
// elements, doors, then one synthetic window usage totaling every window
// count in the scene (emitted only when that total is positive).
func (r *PlannerReconciler) Reconcile(in ReconcileInput) (build, demolish []models.BuildingElementUsage) {
	if in.Scene == nil {
		return in.PreservedBuild, in.PreservedDemolish
	}
	build = r.reconcileSide(in, in.Scene.Build, in.Scene.BuildDoorsAndWindows, in.PreservedBuild, false)
	demolish = r.reconcileSide(in, in.Scene.Demolish, in.Scene.DemolishDoorsAndWindows, in.PreservedDemolish, true)
	return build, demolish
}

func (r *PlannerReconciler) reconcileSide(in ReconcileInput, plain map[int]float64, doorsAndWindows map[string]float64, preserved []models.BuildingElementUsage, demolish bool) []models.BuildingElementUsage {
	out := append([]models.BuildingElementUsage{}, preserved...)

	for _, id := range sortedIntKeys(plain) {
		element := in.ByID[id]
		if element == nil {
			continue
		}
		out = append(out, models.BuildingElementUsage{
			BuildingElementID: element.ID,
			Count:             plain[id],
			Demolished:        demolish,
			Element:           element,
			ProductResults:    sideRecipe(element, demolish),
		})
	}

	windowTotal := 0.0
	for _, plannerID := range sortedStringKeys(doorsAndWindows) {
		count := doorsAndWindows[plannerID]
		switch {
		case r.catalog.DoorIDs[plannerID]:
			element := in.ByPlannerID[plannerID]
			if element == nil {
				continue
			}
			out = append(out, models.BuildingElementUsage{
				BuildingElementID: element.ID,
				Count:             count,
				Demolished:        demolish,
				Element:           element,
				ProductResults:    sideRecipe(element, demolish),
			})
		case r.catalog.WindowIDs[plannerID]:
			windowTotal += count
		}
	}

	// Windows are never distinguished individually; the whole scene total
	// lands on the project default window element. The window recipe is the
	// build recipe on both sides.
	if windowTotal > 0 && in.WindowElement != nil {
		out = append(out, models.BuildingElementUsage{
			BuildingElementID: in.WindowElement.ID,
			Count:             windowTotal,
			Demolished:        demolish,
			Element:           in.WindowElement,
			ProductResults:    in.WindowElement.ProductResults,
		})
	}

	return out
}

func sideRecipe(element *models.BuildingElement, demolish bool) []models.ProductResultUsage {
	if demolish {
		return element.DemolishedProductResults
	}
	return element.ProductResults
}

// Scene maps arrive unordered; sorting the keys keeps reconciliation output
// stable across runs, which downstream first-occurrence dedup relies on.
func sortedIntKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedStringKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
