package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	planconfigdomain "github.com/smallbiznis/entitlement/internal/planconfig/domain"
)

type fieldValueInput struct {
	CustomFieldID string `json:"custom_field_id"`
	Value         string `json:"value"`
}

type featureConfigInput struct {
	FeatureID     string            `json:"feature_id"`
	Status        string            `json:"status"`
	DisplayName   *string           `json:"display_name"`
	Description   *string           `json:"description"`
	Highlight     bool              `json:"highlight"`
	HighlightText *string           `json:"highlight_text"`
	SortOrder     int               `json:"sort_order"`
	Values        []fieldValueInput `json:"values"`
}

type configurePlanRequest struct {
	Configs []featureConfigInput `json:"configs"`
}

type updateConfigRequest struct {
	Status        *string           `json:"status,omitempty"`
	DisplayName   *string           `json:"display_name,omitempty"`
	Description   *string           `json:"description,omitempty"`
	Highlight     *bool             `json:"highlight,omitempty"`
	HighlightText *string           `json:"highlight_text,omitempty"`
	SortOrder     *int              `json:"sort_order,omitempty"`
	Values        []fieldValueInput `json:"values,omitempty"`
}

type reorderRequest struct {
	Orders []struct {
		FeatureID string `json:"feature_id"`
		SortOrder int    `json:"sort_order"`
	} `json:"orders"`
}

func toConfigInput(in featureConfigInput) planconfigdomain.FeatureConfigInput {
	values := make([]planconfigdomain.FieldValueInput, 0, len(in.Values))
	for _, v := range in.Values {
		values = append(values, planconfigdomain.FieldValueInput{
			CustomFieldID: strings.TrimSpace(v.CustomFieldID),
			Value:         v.Value,
		})
	}
	return planconfigdomain.FeatureConfigInput{
		FeatureID:     strings.TrimSpace(in.FeatureID),
		Status:        planconfigdomain.ConfigStatus(strings.TrimSpace(in.Status)),
		DisplayName:   trimPtr(in.DisplayName),
		Description:   trimPtr(in.Description),
		Highlight:     in.Highlight,
		HighlightText: trimPtr(in.HighlightText),
		SortOrder:     in.SortOrder,
		Values:        values,
	}
}

func (s *Server) ConfigurePlanFeatures(c *gin.Context) {
	var req configurePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	configs := make([]planconfigdomain.FeatureConfigInput, 0, len(req.Configs))
	for _, in := range req.Configs {
		configs = append(configs, toConfigInput(in))
	}

	resp, err := s.planConfigSvc.ConfigurePlanFeatures(c.Request.Context(), planconfigdomain.ConfigureRequest{
		PlanID:        strings.TrimSpace(c.Param("plan_id")),
		ApplicationID: applicationIDFrom(c),
		Configs:       configs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddFeatureToPlan(c *gin.Context) {
	var req featureConfigInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.planConfigSvc.AddFeatureToPlan(c.Request.Context(), planconfigdomain.AddFeatureRequest{
		PlanID:        strings.TrimSpace(c.Param("plan_id")),
		ApplicationID: applicationIDFrom(c),
		Config:        toConfigInput(req),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateFeatureConfiguration(c *gin.Context) {
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var status *planconfigdomain.ConfigStatus
	if req.Status != nil {
		parsed := planconfigdomain.ConfigStatus(strings.TrimSpace(*req.Status))
		status = &parsed
	}

	values := make([]planconfigdomain.FieldValueInput, 0, len(req.Values))
	for _, v := range req.Values {
		values = append(values, planconfigdomain.FieldValueInput{
			CustomFieldID: strings.TrimSpace(v.CustomFieldID),
			Value:         v.Value,
		})
	}

	resp, err := s.planConfigSvc.UpdateFeatureConfiguration(c.Request.Context(), planconfigdomain.UpdateConfigRequest{
		PlanID:        strings.TrimSpace(c.Param("plan_id")),
		ApplicationID: applicationIDFrom(c),
		FeatureID:     strings.TrimSpace(c.Param("feature_id")),
		Status:        status,
		DisplayName:   trimPtr(req.DisplayName),
		Description:   trimPtr(req.Description),
		Highlight:     req.Highlight,
		HighlightText: trimPtr(req.HighlightText),
		SortOrder:     req.SortOrder,
		Values:        values,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveFeatureFromPlan(c *gin.Context) {
	err := s.planConfigSvc.RemoveFeatureFromPlan(
		c.Request.Context(),
		strings.TrimSpace(c.Param("plan_id")),
		strings.TrimSpace(c.Param("feature_id")),
		applicationIDFrom(c),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"removed": true}})
}

func (s *Server) ResolvePlanFeatures(c *gin.Context) {
	resp, err := s.planConfigSvc.ResolvePlanFeatures(
		c.Request.Context(),
		strings.TrimSpace(c.Param("plan_id")),
		applicationIDFrom(c),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReorderFeatures(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	orders := make([]planconfigdomain.ReorderEntry, 0, len(req.Orders))
	for _, entry := range req.Orders {
		orders = append(orders, planconfigdomain.ReorderEntry{
			FeatureID: strings.TrimSpace(entry.FeatureID),
			SortOrder: entry.SortOrder,
		})
	}

	if err := s.planConfigSvc.ReorderFeatures(c.Request.Context(), planconfigdomain.ReorderRequest{
		PlanID:        strings.TrimSpace(c.Param("plan_id")),
		ApplicationID: applicationIDFrom(c),
		Orders:        orders,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"reordered": true}})
}
