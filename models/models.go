package models

import (
	"time"

	_ "github.com/lib/pq"
)

// Project status lifecycle. Waiting projects were created from the planner
// side and never opened here; Accepted/Completed projects are locked and
// billed from their archived element snapshots.
const (
	StatusWaiting   = "waiting"
	StatusCreated   = "created"
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusCompleted = "completed"
)

// Resource types. Workforce and composite resources are priced per
// organization; everything else carries a fixed catalog unit price.
const (
	ResourceWorkforce = "workforce"
	ResourceComposite = "composite"
	ResourceMaterial  = "material"
)

const (
	RoleCustomer   = "customer"
	RoleContractor = "contractor"
	RoleFabricator = "fabricator"
)

const (
	BuildingTypeHouse      = "house"
	BuildingTypeApartment  = "apartment"
	BuildingTypeCommercial = "commercial"
)

const (
	ProjectTypeNew        = "new"
	ProjectTypeRenovation = "renovation"
)

// CodeOtherElement marks catalog entries that point at another catalog entry
// through OtherElementID (the "other element" category).
const CodeOtherElement = 27

// IsLockedStatus reports whether a project status freezes its element lists.
func IsLockedStatus(status string) bool {
	return status == StatusAccepted || status == StatusCompleted
}

type User struct {
	ID               int       `json:"id" example:"1"`
	Email            string    `json:"email" example:"user@example.com"`
	Password         string    `json:"password,omitempty" example:""`
	Name             string    `json:"name" example:"John Doe"`
	Address          string    `json:"address" example:"123 Main St"`
	Phone            string    `json:"phone" example:"9876543210"`
	RoleType         string    `json:"role_type" example:"customer"`
	OrganizationName string    `json:"organization_name,omitempty" example:"ACME Builders"`
	Photo            string    `json:"photo,omitempty" example:""`
	ActAsAdmin       bool      `json:"act_as_admin" example:"false"`
	Suspended        bool      `json:"suspended" example:"false"`
	CreatedAt        time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

type Session struct {
	UserID                int       `json:"user_id"`
	SessionID             string    `json:"session_id"`
	HostName              string    `json:"host_name"`
	IPAddress             string    `json:"ip_address"`
	Timestamp             time.Time `json:"timestp"`
	ExpiresAt             time.Time `json:"expires_at"`
	RefreshToken          string    `json:"refresh_token,omitempty"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at,omitempty"`
}

// Resource is the smallest priced catalog unit. Price is only meaningful for
// material-type resources; workforce and composite prices come from
// organization price tables.
type Resource struct {
	ID    int     `json:"id" example:"1"`
	Name  string  `json:"name" example:"Concrete M30"`
	Type  string  `json:"type" example:"material"`
	Price float64 `json:"price" example:"120.50"`
}

// ResourceUsage is one resource line inside a product result. Resource is nil
// when the referenced catalog entry no longer resolves (soft-deleted); such
// lines contribute nothing to cost.
type ResourceUsage struct {
	ResourceID int       `json:"resource_id" example:"1"`
	Count      float64   `json:"count" example:"2.5"`
	Resource   *Resource `json:"resource,omitempty"`
}

// ProductResult is a priced, timed recipe line attached to a building element.
type ProductResult struct {
	ID        int             `json:"id" example:"1"`
	Title     string          `json:"title" example:"Cast foundation slab"`
	Unit      string          `json:"unit" example:"m2"`
	Price     float64         `json:"price" example:"85.00"`
	Time      float64         `json:"time" example:"1.5"`
	Resources []ResourceUsage `json:"resources"`
}

// ProductResultUsage pairs a product result with its per-element count.
// ProductResult is nil when the catalog entry no longer resolves.
type ProductResultUsage struct {
	ProductResultID int            `json:"product_result_id" example:"1"`
	Count           float64        `json:"count" example:"1"`
	ProductResult   *ProductResult `json:"product_result,omitempty"`
}

// BuildingElement is a shared catalog entity. PlannerID is the external
// design tool's own id for elements it keys itself (doors, windows).
type BuildingElement struct {
	ID                       int                  `json:"id" example:"1"`
	Name                     string               `json:"name" example:"Exterior wall 200mm"`
	Code                     int                  `json:"code" example:"3"`
	OtherElementID           int                  `json:"other_element_id,omitempty" example:"0"`
	PlannerID                string               `json:"planner_id,omitempty" example:"5731"`
	ProductResults           []ProductResultUsage `json:"product_results,omitempty"`
	DemolishedProductResults []ProductResultUsage `json:"demolished_product_results,omitempty"`
	OtherElement             *BuildingElement     `json:"other_element,omitempty"`
	Deleted                  bool                 `json:"-"`
}

// BuildingElementUsage is one element line in a project's build or demolish
// list. ProductResults is the resolved recipe actually billed for this
// usage: either the catalog default or a user override.
type BuildingElementUsage struct {
	BuildingElementID int                  `json:"building_element_id" example:"1"`
	Count             float64              `json:"count" example:"4"`
	From3D            bool                 `json:"from_3d" example:"false"`
	Demolished        bool                 `json:"demolished,omitempty" example:"false"`
	Element           *BuildingElement     `json:"element,omitempty"`
	ProductResults    []ProductResultUsage `json:"product_results"`
}

// SnapshotVersion is the current wire version of archived element snapshots.
const SnapshotVersion = 1

// ElementSnapshot is one frozen element line. The recipe inside a snapshot is
// stable after archiving; only Count may change through the privileged edit
// path.
type ElementSnapshot struct {
	BuildingElementID int                  `json:"building_element_id"`
	ElementName       string               `json:"element_name"`
	Code              int                  `json:"code"`
	Count             float64              `json:"count"`
	ProductResults    []ProductResultUsage `json:"product_results"`
}

// ProjectSnapshot is the typed archive of a project's element list, taken
// when the project locks.
type ProjectSnapshot struct {
	Version  int               `json:"version"`
	AuditID  string            `json:"audit_id"`
	TakenAt  time.Time         `json:"taken_at"`
	Elements []ElementSnapshot `json:"elements"`
}

// SpecificationPrice is an organization's hourly price for one workforce
// resource.
type SpecificationPrice struct {
	ResourceID   int     `json:"specification_id" example:"7"`
	PricePerHour float64 `json:"price_per_hour" example:"35.00"`
}

// CompositePrice is a fabricator's square-meter price for one composite
// resource.
type CompositePrice struct {
	ResourceID       int     `json:"composite_id" example:"12"`
	SquareMeterPrice float64 `json:"square_meter_price" example:"210.00"`
}

type Organization struct {
	ID             int                  `json:"id" example:"3"`
	Name           string               `json:"name" example:"ACME Builders"`
	Photo          string               `json:"photo,omitempty" example:""`
	RoleType       string               `json:"role_type" example:"contractor"`
	Specifications []SpecificationPrice `json:"specifications"`
	Composites     []CompositePrice     `json:"composites,omitempty"`
}

type NotIncludedResource struct {
	ID   int    `json:"_id" example:"7"`
	Name string `json:"name" example:"Electrician"`
}

// Quote is the per-organization cost offer produced for a submitted project.
// Cost already includes the fixed service markup.
type Quote struct {
	OrganizationID        int                   `json:"_id" example:"3"`
	Name                  string                `json:"name" example:"ACME Builders"`
	Photo                 string                `json:"photo,omitempty" example:""`
	RoleType              string                `json:"role_type" example:"contractor"`
	Cost                  float64               `json:"cost" example:"12500.00"`
	CostDisplay           string                `json:"cost_display" example:"12500.00"`
	NotIncludedWorkforces []NotIncludedResource `json:"notIncludedWorkforces"`
	NotIncludedComposites []NotIncludedResource `json:"notIncludedComposites,omitempty"`
}

// PlannerScene is the element diff pulled from the external design tool.
// Build and Demolish are keyed by our catalog element ids; the doors/windows
// buckets are keyed by the planner's own catalog ids.
type PlannerScene struct {
	Build                   map[int]float64    `json:"build"`
	Demolish                map[int]float64    `json:"demolish"`
	BuildDoorsAndWindows    map[string]float64 `json:"buildDoorsAndWindows"`
	DemolishDoorsAndWindows map[string]float64 `json:"demolishDoorsAndWindows"`
}

// PlannerSceneInfo is one entry of the planner's scene listing: enough to
// match scenes against local projects and to decorate them with thumbnails.
type PlannerSceneInfo struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
}

// PlannerCatalog tells the reconciler which planner catalog ids are doors and
// which are windows. It is injected at construction, not read from globals.
type PlannerCatalog struct {
	DoorIDs   map[string]bool
	WindowIDs map[string]bool
}

// DefaultElementWindow is the role key of the project default window element.
const DefaultElementWindow = "window"

type Project struct {
	ID                       int                    `json:"id" example:"42"`
	UserID                   int                    `json:"user_id" example:"1"`
	OrganizationID           int                    `json:"organization_id,omitempty" example:"3"`
	Name                     string                 `json:"name" example:"Lakeside house"`
	Code                     string                 `json:"code" example:"AB10432"`
	Description              string                 `json:"description" example:"Two floor family house"`
	Address                  string                 `json:"address" example:"12 Lakeside Rd"`
	Status                   string                 `json:"status" example:"created"`
	BuildingType             string                 `json:"building_type" example:"house"`
	ProjectType              string                 `json:"project_type" example:"new"`
	Floors                   int                    `json:"floors" example:"2"`
	Elevator                 bool                   `json:"elevator" example:"false"`
	ParkingProvided          bool                   `json:"parking_provided" example:"true"`
	ParkingRate              float64                `json:"parking_rate" example:"0"`
	IsManual                 bool                   `json:"is_manual" example:"false"`
	Deleted                  bool                   `json:"deleted" example:"false"`
	PlannerKey               string                 `json:"planner_key,omitempty" example:"ab12cd"`
	Picture                  string                 `json:"picture,omitempty" example:""`
	MaterialPrice            float64                `json:"material_price" example:"0"`
	RunningCost              float64                `json:"running_cost" example:"0"`
	BuildingElements         []BuildingElementUsage `json:"building_elements"`
	DemolishBuildingElements []BuildingElementUsage `json:"demolish_building_elements"`
	DefaultBuildingElements  map[string]int         `json:"default_building_elements"`
	BuildSnapshot            *ProjectSnapshot       `json:"build_snapshot,omitempty"`
	DemolishSnapshot         *ProjectSnapshot       `json:"demolish_snapshot,omitempty"`
	OrgSpecifications        []SpecificationPrice   `json:"org_specifications,omitempty"`
	OrgComposites            []CompositePrice       `json:"org_composites,omitempty"`
	CreatedAt                time.Time              `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

// Locked reports whether the project bills from its archived snapshots.
func (p *Project) Locked() bool {
	return IsLockedStatus(p.Status)
}

// ProjectSummary holds the per-project totals stored alongside a project:
// accumulated element labor time and the fixed-price material total.
type ProjectSummary struct {
	ProjectID     int     `json:"project_id" example:"42"`
	ElementTime   float64 `json:"element_time" example:"120.5"`
	MaterialPrice float64 `json:"material_price" example:"15230.40"`
}

// ElementCountEdit is a quantity-only edit applied to a locked project's
// snapshot through the administrative override path.
type ElementCountEdit struct {
	BuildingElementID int     `json:"building_element_id" example:"1"`
	Count             float64 `json:"count" example:"6"`
}

// DevAlert is an operational notification mailed to the developer inbox when
// an auxiliary integration misbehaves.
type DevAlert struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
}
