package external

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"time"
)

// OpenTDBClient fetches multiple-choice questions from the Open Trivia DB (no API key).
type OpenTDBClient struct {
	baseURL    string
	difficulty string
	httpClient *http.Client
}

func NewOpenTDBClient(baseURL, difficulty string, httpClient *http.Client) *OpenTDBClient {
	if baseURL == "" {
		baseURL = "https://opentdb.com"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &OpenTDBClient{
		baseURL:    baseURL,
		difficulty: difficulty,
		httpClient: httpClient,
	}
}

type openTDBQuestion struct {
	Type            string   `json:"type"`
	Question        string   `json:"question"`
	CorrectAnswer   string   `json:"correct_answer"`
	IncorrectAnswer []string `json:"incorrect_answers"`
}

type openTDBResponse struct {
	ResponseCode int               `json:"response_code"`
	Results      []openTDBQuestion `json:"results"`
}

func (c *OpenTDBClient) Name() string { return "opentdb" }

// Fetch asks for amount questions. OpenTDB caps a single call at 50.
func (c *OpenTDBClient) Fetch(ctx context.Context, amount int) ([]RawQuestion, error) {
	values := url.Values{}
	values.Set("amount", fmt.Sprint(amount))
	values.Set("type", "multiple")
	if c.difficulty != "" {
		values.Set("difficulty", c.difficulty)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api.php?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("opentdb non-200: %d", resp.StatusCode)
	}

	var payload openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("opentdb response code %d", payload.ResponseCode)
	}

	out := make([]RawQuestion, 0, len(payload.Results))
	for _, q := range payload.Results {
		if q.Type != "multiple" {
			continue
		}
		// OpenTDB escapes HTML entities in the default encoding.
		incorrect := make([]string, len(q.IncorrectAnswer))
		for i, a := range q.IncorrectAnswer {
			incorrect[i] = html.UnescapeString(a)
		}
		out = append(out, RawQuestion{
			Prompt:    html.UnescapeString(q.Question),
			Correct:   html.UnescapeString(q.CorrectAnswer),
			Incorrect: incorrect,
		})
	}
	return out, nil
}
