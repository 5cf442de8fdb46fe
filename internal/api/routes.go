package api

import (
	"alcyxob/workout-sync/internal/service"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	logger *slog.Logger,
	authService service.AuthService,
	workoutService service.WorkoutService,
) {
	authHandler := NewAuthHandler(authService)
	workoutHandler := NewWorkoutHandler(workoutService, logger)

	authMiddleware := AuthMiddleware(authService)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr})
		})

		// --- Workout Routes ---
		workoutGroup := protected.Group("/workouts")
		{
			workoutGroup.GET("", workoutHandler.ListWorkouts)
			workoutGroup.POST("", workoutHandler.CreateWorkout)
			workoutGroup.GET("/:workoutId", workoutHandler.GetWorkout)
			// PUT /api/v1/workouts/{workoutId} - full save, reconciled server-side
			workoutGroup.PUT("/:workoutId", workoutHandler.SaveWorkout)
			workoutGroup.POST("/:workoutId/exercises", workoutHandler.AddExercise)
			workoutGroup.PUT("/:workoutId/exercises/order", workoutHandler.ReorderExercises)
		}

		// --- Exercise Routes ---
		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.PATCH("/:exerciseId", workoutHandler.UpdateExercise)
			exerciseGroup.DELETE("/:exerciseId", workoutHandler.RemoveExercise)
			exerciseGroup.POST("/:exerciseId/sets", workoutHandler.AddSet)
		}

		// --- Set Routes ---
		setGroup := protected.Group("/sets")
		{
			setGroup.PATCH("/:setId", workoutHandler.UpdateSet)
			setGroup.DELETE("/:setId", workoutHandler.RemoveSet)
		}
	}
}
