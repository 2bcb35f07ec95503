package models

type ErrorResponse struct {
	Error   string `json:"error" example:"Project not found"`
	Details string `json:"details,omitempty" example:""`
}

type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"user@example.com"`
	Password string `json:"password" binding:"required" example:""`
	IP       string `json:"ip" example:"127.0.0.1"`
}

type LoginResponse struct {
	Message      string `json:"message" example:"User successfully logged in"`
	SessionID    string `json:"session_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type CreateProjectRequest struct {
	Name             string  `json:"name" binding:"required" example:"Lakeside house"`
	Description      string  `json:"description" binding:"required" example:"Two floor family house"`
	Address          string  `json:"address" binding:"required" example:"12 Lakeside Rd"`
	Floors           int     `json:"floors" example:"2"`
	BuildingType     string  `json:"building_type" binding:"required" example:"house"`
	ProjectType      string  `json:"project_type" binding:"required" example:"new"`
	Elevator         bool    `json:"elevator" example:"false"`
	ParkingProvided  bool    `json:"parking_provided" example:"true"`
	ParkingRate      float64 `json:"parking_rate" example:"0"`
	IsManual         bool    `json:"is_manual" example:"false"`
	IsAddressMatches bool    `json:"is_address_matches" example:"false"`
}

// UpdateProjectRequest carries both full project updates and element-only
// updates; OnlyUpdateElements selects which validation applies.
type UpdateProjectRequest struct {
	ID                 int                    `json:"id" binding:"required" example:"42"`
	Name               string                 `json:"name" example:"Lakeside house"`
	Description        string                 `json:"description" example:"Two floor family house"`
	Address            string                 `json:"address" example:"12 Lakeside Rd"`
	Floors             int                    `json:"floors" example:"2"`
	BuildingType       string                 `json:"building_type" example:"house"`
	ProjectType        string                 `json:"project_type" example:"new"`
	Elevator           bool                   `json:"elevator" example:"false"`
	ParkingProvided    bool                   `json:"parking_provided" example:"true"`
	ParkingRate        float64                `json:"parking_rate" example:"0"`
	OnlyUpdateElements bool                   `json:"only_update_elements" example:"false"`
	BuildingElements   []ElementUpdateRequest `json:"building_elements"`
}

type ElementUpdateRequest struct {
	ID         int     `json:"id" binding:"required" example:"1"`
	Count      float64 `json:"count" example:"4"`
	From3D     bool    `json:"from_3d" example:"false"`
	Demolished bool    `json:"demolished" example:"false"`
}

type RenameProjectRequest struct {
	ProjectID int    `json:"project_id" binding:"required" example:"42"`
	NewName   string `json:"new_name" binding:"required" example:"Lakeside house v2"`
}

type UpdateElementRecipeRequest struct {
	ProjectID      int                       `json:"project_id" binding:"required" example:"42"`
	ElementID      int                       `json:"element_id" binding:"required" example:"1"`
	ResetDefault   bool                      `json:"reset_default" example:"false"`
	ProductResults []ProductResultUsageInput `json:"product_results"`
}

type ProductResultUsageInput struct {
	ProductResultID int     `json:"product_result_id" binding:"required" example:"1"`
	Count           float64 `json:"count" example:"1"`
}

// CatalogRecipeRequest replaces a catalog element's default recipe for one
// side. Affects future projects only; stored per-project recipes keep their
// resolved copy.
type CatalogRecipeRequest struct {
	Demolish       bool                      `json:"demolish" example:"false"`
	ProductResults []ProductResultUsageInput `json:"product_results" binding:"required"`
}

type SetDefaultElementsRequest struct {
	DefaultElements map[string]int `json:"default_elements" binding:"required"`
}

type NotIncludedResponse struct {
	NotIncludedWorkforces []NotIncludedResource `json:"notIncludedWorkforces"`
	NotIncludedComposites []NotIncludedResource `json:"notIncludedComposites"`
}

type ProjectStatusRequest struct {
	ProjectID int `json:"project_id" binding:"required" example:"42"`
}
