package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	consumptiondomain "github.com/smallbiznis/entitlement/internal/consumption/domain"
)

type initializeConsumptionRequest struct {
	SubscriptionID string `json:"subscription_id"`
	SubscriberID   string `json:"subscriber_id"`
	PlanID         string `json:"plan_id"`
	FeatureID      string `json:"feature_id"`
	CustomFieldID  string `json:"custom_field_id"`
	Period         string `json:"period"`
}

type recordConsumptionRequest struct {
	SubscriptionID string  `json:"subscription_id"`
	FeatureID      string  `json:"feature_id"`
	CustomFieldID  string  `json:"custom_field_id"`
	Period         string  `json:"period"`
	Delta          float64 `json:"delta"`
}

func (s *Server) InitializeConsumption(c *gin.Context) {
	var req initializeConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.consumptionSvc.Initialize(c.Request.Context(), consumptiondomain.InitializeRequest{
		SubscriptionID: strings.TrimSpace(req.SubscriptionID),
		SubscriberID:   strings.TrimSpace(req.SubscriberID),
		PlanID:         strings.TrimSpace(req.PlanID),
		FeatureID:      strings.TrimSpace(req.FeatureID),
		CustomFieldID:  strings.TrimSpace(req.CustomFieldID),
		Period:         strings.TrimSpace(req.Period),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecordConsumption(c *gin.Context) {
	var req recordConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.consumptionSvc.Increment(c.Request.Context(), consumptiondomain.IncrementRequest{
		SubscriptionID: strings.TrimSpace(req.SubscriptionID),
		FeatureID:      strings.TrimSpace(req.FeatureID),
		CustomFieldID:  strings.TrimSpace(req.CustomFieldID),
		Period:         strings.TrimSpace(req.Period),
		Delta:          req.Delta,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCurrentConsumption(c *gin.Context) {
	var query struct {
		SubscriptionID string `form:"subscription_id"`
		FeatureID      string `form:"feature_id"`
		CustomFieldID  string `form:"custom_field_id"`
		Period         string `form:"period"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.consumptionSvc.FindCurrent(c.Request.Context(), consumptiondomain.LookupRequest{
		SubscriptionID: strings.TrimSpace(query.SubscriptionID),
		FeatureID:      strings.TrimSpace(query.FeatureID),
		CustomFieldID:  strings.TrimSpace(query.CustomFieldID),
		Period:         strings.TrimSpace(query.Period),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResetConsumption(c *gin.Context) {
	resp, err := s.consumptionSvc.Reset(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSubscriptionConsumptions(c *gin.Context) {
	resp, err := s.consumptionSvc.ListBySubscription(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
