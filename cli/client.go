package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ApiClient handles API requests to the souschef API
type ApiClient struct {
	httpClient *http.Client
	BaseURL    string
}

// NewApiClient creates a new API client
func NewApiClient() *ApiClient {
	baseURL := os.Getenv("SOUSCHEF_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &ApiClient{
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		BaseURL: baseURL,
	}
}

// CheckHealth checks if the API is up and running
func (c *ApiClient) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.BaseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API health check failed with status code: %d", resp.StatusCode)
	}
	return true, nil
}

// RecipeSummary is one row of the recipe listing
type RecipeSummary struct {
	RecipeID   string `json:"RecipeID"`
	Title      string `json:"Title"`
	Difficulty string `json:"Difficulty"`
	Servings   int    `json:"Servings"`
}

// StepView is the step snapshot as served by the API
type StepView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Type        string `json:"type"`
	State       string `json:"state"`
}

// SessionView is the session state as served by the API
type SessionView struct {
	SessionID string     `json:"session_id"`
	Recipe    string     `json:"recipe"`
	Status    string     `json:"status"`
	Steps     []StepView `json:"steps"`
}

// EventView is one frame of the websocket event stream
type EventView struct {
	Seq    uint64 `json:"seq"`
	Type   string `json:"type"`
	StepID string `json:"step_id"`
}

// ListRecipes fetches the stored recipes
func (c *ApiClient) ListRecipes() ([]RecipeSummary, error) {
	resp, err := c.httpClient.Get(c.BaseURL + "/api/v1/recipes")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var recipes []RecipeSummary
	if err := json.NewDecoder(resp.Body).Decode(&recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// CreateSession starts a new cooking session for a recipe
func (c *ApiClient) CreateSession(recipeID string) (*SessionView, error) {
	body, _ := json.Marshal(map[string]string{"recipe_id": recipeID})
	resp, err := c.httpClient.Post(c.BaseURL+"/api/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create session failed with status %d", resp.StatusCode)
	}
	var view SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, err
	}
	return &view, nil
}

// GetSession fetches the current session state
func (c *ApiClient) GetSession(sessionID string) (*SessionView, error) {
	resp, err := c.httpClient.Get(c.BaseURL + "/api/v1/sessions/" + sessionID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get session failed with status %d", resp.StatusCode)
	}
	var view SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, err
	}
	return &view, nil
}

// SessionOp invokes one of the engine operations: start, abort, or a
// step operation like steps/<id>/confirm.
func (c *ApiClient) SessionOp(sessionID, op string) (*SessionView, error) {
	resp, err := c.httpClient.Post(
		fmt.Sprintf("%s/api/v1/sessions/%s/%s", c.BaseURL, sessionID, op),
		"application/json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("%s: %s", op, apiErr.Error)
	}
	var view SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, err
	}
	view.SessionID = sessionID
	return &view, nil
}

// StreamEvents opens the websocket event stream for a session and
// forwards decoded events until the connection closes.
func (c *ApiClient) StreamEvents(sessionID string, events chan<- EventView) error {
	wsURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)
	wsURL.Path = "/ws/" + sessionID

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		var ev EventView
		if err := conn.ReadJSON(&ev); err != nil {
			return nil
		}
		events <- ev
	}
}
