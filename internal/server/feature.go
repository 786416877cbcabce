package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/entitlement/internal/appcontext"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
)

type createFeatureRequest struct {
	Name         string         `json:"name"`
	Description  *string        `json:"description"`
	Category     string         `json:"category"`
	Global       bool           `json:"global"`
	AllowedRoles []string       `json:"allowed_roles"`
	Active       *bool          `json:"active"`
	Icon         *string        `json:"icon"`
	DisplayName  *string        `json:"display_name"`
	SortOrder    int            `json:"sort_order"`
	Metadata     map[string]any `json:"metadata"`
}

type updateFeatureRequest struct {
	Description  *string        `json:"description,omitempty"`
	Category     *string        `json:"category,omitempty"`
	AllowedRoles []string       `json:"allowed_roles,omitempty"`
	Active       *bool          `json:"active,omitempty"`
	Icon         *string        `json:"icon,omitempty"`
	DisplayName  *string        `json:"display_name,omitempty"`
	SortOrder    *int           `json:"sort_order,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type addCustomFieldRequest struct {
	FieldName    string   `json:"field_name"`
	DataType     string   `json:"data_type"`
	Unit         string   `json:"unit"`
	DefaultValue *string  `json:"default_value"`
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	EnumValues   []string `json:"enum_values"`
	Required     bool     `json:"required"`
	SortOrder    int      `json:"sort_order"`
}

type updateCustomFieldRequest struct {
	Unit         *string  `json:"unit,omitempty"`
	DefaultValue *string  `json:"default_value,omitempty"`
	MinValue     *float64 `json:"min_value,omitempty"`
	MaxValue     *float64 `json:"max_value,omitempty"`
	EnumValues   []string `json:"enum_values,omitempty"`
	Required     *bool    `json:"required,omitempty"`
	SortOrder    *int     `json:"sort_order,omitempty"`
	Active       *bool    `json:"active,omitempty"`
}

// applicationIDFrom returns the tenant id carried by the request context, or
// an empty string for untenanted (global catalog) requests.
func applicationIDFrom(c *gin.Context) string {
	if appID, ok := appcontext.ApplicationIDFromContext(c.Request.Context()); ok {
		return appID.String()
	}
	return ""
}

func (s *Server) CreateFeature(c *gin.Context) {
	var req createFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.featureSvc.Create(c.Request.Context(), featuredomain.CreateRequest{
		Name:          strings.TrimSpace(req.Name),
		Description:   trimPtr(req.Description),
		Category:      featuredomain.Category(strings.TrimSpace(req.Category)),
		Global:        req.Global,
		ApplicationID: applicationIDFrom(c),
		AllowedRoles:  req.AllowedRoles,
		Active:        req.Active,
		Icon:          trimPtr(req.Icon),
		DisplayName:   trimPtr(req.DisplayName),
		SortOrder:     req.SortOrder,
		Metadata:      req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFeature(c *gin.Context) {
	resp, err := s.featureSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFeatures(c *gin.Context) {
	var query struct {
		Category      string `form:"category"`
		Role          string `form:"role"`
		Active        string `form:"active"`
		IncludeGlobal string `form:"include_global"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	includeGlobal := true
	if raw := strings.TrimSpace(query.IncludeGlobal); raw != "" {
		parsed, err := parseOptionalBool(raw)
		if err != nil {
			AbortWithError(c, newValidationError("include_global", "invalid_include_global", "invalid include_global"))
			return
		}
		includeGlobal = *parsed
	}

	var category *featuredomain.Category
	if raw := strings.TrimSpace(query.Category); raw != "" {
		parsed := featuredomain.Category(strings.ToUpper(raw))
		category = &parsed
	}

	resp, err := s.featureSvc.List(c.Request.Context(), featuredomain.ListRequest{
		IncludeGlobal: includeGlobal,
		Category:      category,
		Role:          strings.TrimSpace(query.Role),
		Active:        active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateFeature(c *gin.Context) {
	var req updateFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var category *featuredomain.Category
	if req.Category != nil {
		parsed := featuredomain.Category(strings.TrimSpace(*req.Category))
		category = &parsed
	}

	resp, err := s.featureSvc.Update(c.Request.Context(), featuredomain.UpdateRequest{
		ID:           strings.TrimSpace(c.Param("id")),
		Description:  trimPtr(req.Description),
		Category:     category,
		AllowedRoles: req.AllowedRoles,
		Active:       req.Active,
		Icon:         trimPtr(req.Icon),
		DisplayName:  trimPtr(req.DisplayName),
		SortOrder:    req.SortOrder,
		Metadata:     req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateFeature(c *gin.Context) {
	resp, err := s.featureSvc.Deactivate(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddCustomField(c *gin.Context) {
	var req addCustomFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.featureSvc.AddCustomField(c.Request.Context(), featuredomain.AddCustomFieldRequest{
		FeatureID:    strings.TrimSpace(c.Param("id")),
		FieldName:    strings.TrimSpace(req.FieldName),
		DataType:     featuredomain.FieldType(strings.TrimSpace(req.DataType)),
		Unit:         featuredomain.Unit(strings.TrimSpace(req.Unit)),
		DefaultValue: trimPtr(req.DefaultValue),
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		EnumValues:   req.EnumValues,
		Required:     req.Required,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateCustomField(c *gin.Context) {
	var req updateCustomFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var unit *featuredomain.Unit
	if req.Unit != nil {
		parsed := featuredomain.Unit(strings.TrimSpace(*req.Unit))
		unit = &parsed
	}

	resp, err := s.featureSvc.UpdateCustomField(c.Request.Context(), featuredomain.UpdateCustomFieldRequest{
		FieldID:      strings.TrimSpace(c.Param("id")),
		Unit:         unit,
		DefaultValue: trimPtr(req.DefaultValue),
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		EnumValues:   req.EnumValues,
		Required:     req.Required,
		SortOrder:    req.SortOrder,
		Active:       req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCustomFields(c *gin.Context) {
	resp, err := s.featureSvc.ListCustomFields(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
