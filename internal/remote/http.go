// internal/remote/http.go
// Package remote talks to the workout API over HTTP. Client implements
// client.Remote, so a WorkoutClient can run against a live server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"alcyxob/workout-sync/internal/client"
	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/service"
)

var (
	ErrUnauthorized = errors.New("remote: missing or invalid token")
	ErrEmailTaken   = errors.New("remote: email already registered")
)

// StatusError is returned for responses no sentinel covers.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: unexpected status %d: %s", e.Code, e.Msg)
}

// DefaultTimeout bounds a single request when Options leaves it unset.
const DefaultTimeout = 10 * time.Second

type Options struct {
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  *slog.Logger
}

var _ client.Remote = (*Client)(nil)

// New creates a client for the API rooted at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL: u.JoinPath("api", "v1"),
		token:   opts.Token,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}, nil
}

// --- Auth ---

type credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		path:     []string{"auth", "register"},
		body:     credentials{Name: name, Email: email, Password: password},
		conflict: ErrEmailTaken,
	})
}

// Login exchanges credentials for a bearer token. The client itself keeps
// using the token it was created with.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   []string{"auth", "login"},
		body:   credentials{Email: email, Password: password},
		out:    &resp,
	})
	return resp.Token, err
}

// --- Workouts ---

func (c *Client) ListWorkouts(ctx context.Context) ([]domain.Workout, error) {
	var out []domain.Workout
	err := c.do(ctx, request{method: http.MethodGet, path: []string{"workouts"}, out: &out})
	return out, err
}

func (c *Client) CreateWorkout(ctx context.Context, workout *domain.Workout) (*domain.Workout, error) {
	var out domain.Workout
	err := c.do(ctx, request{method: http.MethodPost, path: []string{"workouts"}, body: workout, out: &out})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetWorkout(ctx context.Context, workoutID string) (*domain.Workout, error) {
	var out domain.Workout
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     []string{"workouts", workoutID},
		out:      &out,
		notFound: service.ErrWorkoutNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveWorkout(ctx context.Context, workout *domain.Workout) (*domain.Workout, error) {
	var out domain.Workout
	err := c.do(ctx, request{
		method:   http.MethodPut,
		path:     []string{"workouts", workout.ID},
		body:     workout,
		out:      &out,
		notFound: service.ErrWorkoutNotFound,
		conflict: service.ErrVersionConflict,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Exercises ---

func (c *Client) CreateExercise(ctx context.Context, workoutID string, payload domain.ExercisePayload) (*domain.WorkoutExercise, error) {
	var out domain.WorkoutExercise
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     []string{"workouts", workoutID, "exercises"},
		body:     payload,
		out:      &out,
		notFound: service.ErrWorkoutNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateExercise(ctx context.Context, exerciseID string, patch domain.ExercisePatch) (*domain.WorkoutExercise, error) {
	var out domain.WorkoutExercise
	err := c.do(ctx, request{
		method:   http.MethodPatch,
		path:     []string{"exercises", exerciseID},
		body:     patch,
		out:      &out,
		notFound: service.ErrExerciseNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteExercise(ctx context.Context, exerciseID string) error {
	return c.do(ctx, request{
		method:   http.MethodDelete,
		path:     []string{"exercises", exerciseID},
		notFound: service.ErrExerciseNotFound,
	})
}

func (c *Client) ReorderExercises(ctx context.Context, workoutID string, orders []domain.OrderEntry) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   []string{"workouts", workoutID, "exercises", "order"},
		body: struct {
			Orders []domain.OrderEntry `json:"orders"`
		}{orders},
		notFound: service.ErrWorkoutNotFound,
	})
}

// --- Sets ---

func (c *Client) CreateSet(ctx context.Context, exerciseID string, payload domain.SetPayload) (*domain.ExerciseSet, error) {
	var out domain.ExerciseSet
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     []string{"exercises", exerciseID, "sets"},
		body:     payload,
		out:      &out,
		notFound: service.ErrExerciseNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSet(ctx context.Context, setID string, patch domain.SetPatch) (*domain.ExerciseSet, error) {
	var out domain.ExerciseSet
	err := c.do(ctx, request{
		method:   http.MethodPatch,
		path:     []string{"sets", setID},
		body:     patch,
		out:      &out,
		notFound: service.ErrSetNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSet(ctx context.Context, setID string) error {
	return c.do(ctx, request{
		method:   http.MethodDelete,
		path:     []string{"sets", setID},
		notFound: service.ErrSetNotFound,
	})
}

// --- Transport ---

type request struct {
	method string
	path   []string
	body   any
	out    any

	// Sentinels wrapped into 404 and 409 errors.
	notFound error
	conflict error
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func (c *Client) do(ctx context.Context, r request) error {
	endpoint := c.baseURL.JoinPath(r.path...)

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", r.method, endpoint.Path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, endpoint.Path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("remote request",
		"method", r.method,
		"path", endpoint.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if r.out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", r.method, endpoint.Path, err)
		}
		return nil
	}
	return statusError(resp, r)
}

// statusError turns a failed response into an error callers can match with
// errors.Is: client.ErrNotFound for 404, the request's conflict sentinel for
// 409 and *domain.ValidationError for 400.
func statusError(resp *http.Response, r request) error {
	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Error == "" {
		eb.Error = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &domain.ValidationError{
			Fields: eb.Fields,
			Msg:    strings.TrimPrefix(eb.Error, "validation failed: "),
		}
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, eb.Error)
	case http.StatusNotFound:
		if r.notFound != nil {
			return fmt.Errorf("%w: %w", client.ErrNotFound, r.notFound)
		}
		return fmt.Errorf("%w: %s", client.ErrNotFound, eb.Error)
	case http.StatusConflict:
		if r.conflict != nil {
			return fmt.Errorf("%w: %s", r.conflict, eb.Error)
		}
	}
	return &StatusError{Code: resp.StatusCode, Msg: eb.Error}
}
