package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-order-engine/services"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

type RatingController struct {
	Ratings *services.RatingService
}

func NewRatingController(ratings *services.RatingService) *RatingController {
	return &RatingController{Ratings: ratings}
}

// RateOrder -> POST /api/orders/:order_id/ratings
func (rc *RatingController) RateOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	var body services.RatingInput
	if !bindJSON(c, &body) {
		return
	}

	rating, err := rc.Ratings.RateOrder(c.Request.Context(), actor, orderID, body)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order rated", rating)
}

// GetRestaurantRating -> GET /api/restaurants/:restaurant_id/rating
func (rc *RatingController) GetRestaurantRating(c *gin.Context) {
	restaurantID, ok := paramID(c, "restaurant_id")
	if !ok {
		return
	}

	rating, err := rc.Ratings.AverageRating(c.Request.Context(), restaurantID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Restaurant rating", rating)
}
