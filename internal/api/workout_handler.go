// internal/api/workout_handler.go
package api

import (
	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/service"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type WorkoutHandler struct {
	workoutService service.WorkoutService
	logger         *slog.Logger
}

func NewWorkoutHandler(workoutService service.WorkoutService, logger *slog.Logger) *WorkoutHandler {
	return &WorkoutHandler{workoutService: workoutService, logger: logger}
}

// --- DTOs ---

// ReorderRequest assigns a new order to every exercise of a workout.
type ReorderRequest struct {
	Orders []domain.OrderEntry `json:"orders" binding:"required"`
}

// --- Workouts ---

// ListWorkouts godoc
// @Summary List the caller's workouts (headers only), newest first
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Workout
// @Router /workouts [get]
func (h *WorkoutHandler) ListWorkouts(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}

	workouts, err := h.workoutService.ListWorkouts(c.Request.Context(), ownerID)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	if workouts == nil {
		c.JSON(http.StatusOK, []domain.Workout{}) // Return empty JSON array, not null
		return
	}
	c.JSON(http.StatusOK, workouts)
}

// CreateWorkout godoc
// @Summary Create a workout, optionally with exercises and sets
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workout body domain.Workout true "Workout"
// @Success 201 {object} domain.Workout
// @Failure 400 {object} gin.H "Invalid input"
// @Router /workouts [post]
func (h *WorkoutHandler) CreateWorkout(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var req domain.Workout
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.workoutService.CreateWorkout(c.Request.Context(), ownerID, &req)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetWorkout godoc
// @Summary Get a workout with its ordered exercises and sets
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout ID"
// @Success 200 {object} domain.Workout
// @Failure 404 {object} gin.H "Workout not found"
// @Router /workouts/{workoutId} [get]
func (h *WorkoutHandler) GetWorkout(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}

	w, err := h.workoutService.GetWorkout(c.Request.Context(), ownerID, c.Param("workoutId"))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// SaveWorkout godoc
// @Summary Replace a workout's tree with the submitted one
// @Description Entities missing from the submission are deleted, new ones created, changed ones updated.
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout ID"
// @Param workout body domain.Workout true "Full workout"
// @Success 200 {object} domain.Workout
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 404 {object} gin.H "Workout not found"
// @Failure 409 {object} gin.H "Workout modified since it was loaded"
// @Router /workouts/{workoutId} [put]
func (h *WorkoutHandler) SaveWorkout(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var req domain.Workout
	if !bindJSON(c, &req) {
		return
	}
	req.ID = c.Param("workoutId")

	saved, err := h.workoutService.SaveWorkout(c.Request.Context(), ownerID, &req)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// --- Exercises ---

// AddExercise godoc
// @Summary Insert an exercise at the given order; it is seeded with one set
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout ID"
// @Param exercise body domain.ExercisePayload true "Exercise"
// @Success 201 {object} domain.WorkoutExercise
// @Router /workouts/{workoutId}/exercises [post]
func (h *WorkoutHandler) AddExercise(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var req domain.ExercisePayload
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.workoutService.AddExercise(c.Request.Context(), ownerID, c.Param("workoutId"), req)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ReorderExercises godoc
// @Summary Reorder all exercises of a workout
// @Tags Exercises
// @Accept json
// @Security BearerAuth
// @Param workoutId path string true "Workout ID"
// @Param orders body ReorderRequest true "New orders"
// @Success 204
// @Router /workouts/{workoutId}/exercises/order [put]
func (h *WorkoutHandler) ReorderExercises(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var req ReorderRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.workoutService.ReorderExercises(c.Request.Context(), ownerID, c.Param("workoutId"), req.Orders); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateExercise godoc
// @Summary Update an exercise's note
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Param patch body domain.ExercisePatch true "Changed fields"
// @Success 200 {object} domain.WorkoutExercise
// @Router /exercises/{exerciseId} [patch]
func (h *WorkoutHandler) UpdateExercise(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var req domain.ExercisePatch
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.workoutService.UpdateExercise(c.Request.Context(), ownerID, c.Param("exerciseId"), req)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RemoveExercise godoc
// @Summary Delete an exercise and its sets
// @Tags Exercises
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Success 204
// @Router /exercises/{exerciseId} [delete]
func (h *WorkoutHandler) RemoveExercise(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}

	if err := h.workoutService.RemoveExercise(c.Request.Context(), ownerID, c.Param("exerciseId")); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Sets ---

// AddSet godoc
// @Summary Insert a set at the given order
// @Tags Sets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Param set body domain.SetPayload true "Set"
// @Success 201 {object} domain.ExerciseSet
// @Router /exercises/{exerciseId}/sets [post]
func (h *WorkoutHandler) AddSet(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var req domain.SetPayload
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.workoutService.AddSet(c.Request.Context(), ownerID, c.Param("exerciseId"), req)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateSet godoc
// @Summary Update some fields of a set
// @Tags Sets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param setId path string true "Set ID"
// @Param patch body domain.SetPatch true "Changed fields"
// @Success 200 {object} domain.ExerciseSet
// @Router /sets/{setId} [patch]
func (h *WorkoutHandler) UpdateSet(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var req domain.SetPatch
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.workoutService.UpdateSet(c.Request.Context(), ownerID, c.Param("setId"), req)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RemoveSet godoc
// @Summary Delete a set
// @Tags Sets
// @Security BearerAuth
// @Param setId path string true "Set ID"
// @Success 204
// @Router /sets/{setId} [delete]
func (h *WorkoutHandler) RemoveSet(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}

	if err := h.workoutService.RemoveSet(c.Request.Context(), ownerID, c.Param("setId")); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Helpers ---

func (h *WorkoutHandler) owner(c *gin.Context) (string, bool) {
	ownerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return "", false
	}
	return ownerID, true
}

// bindJSON decodes the body. Field validation happens in the service layer.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// respondWithError maps service errors to HTTP status codes.
func (h *WorkoutHandler) respondWithError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "fields": ve.Fields})
	case errors.Is(err, domain.ErrValidation):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrWorkoutNotFound),
		errors.Is(err, service.ErrExerciseNotFound),
		errors.Is(err, service.ErrSetNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrVersionConflict):
		abortWithError(c, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(c.Request.Context(), "workout request failed",
			slog.String("path", c.FullPath()), slog.Any("error", err))
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
	}
}
