package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TriviaAPIClient integrates with The Trivia API. The key is optional.
type TriviaAPIClient struct {
	baseURL    string
	apiKey     string
	difficulty string
	httpClient *http.Client
}

func NewTriviaAPIClient(baseURL, apiKey, difficulty string, httpClient *http.Client) *TriviaAPIClient {
	if baseURL == "" {
		baseURL = "https://the-trivia-api.com/v2"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &TriviaAPIClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		difficulty: difficulty,
		httpClient: httpClient,
	}
}

type triviaAPIQuestion struct {
	Question struct {
		Text string `json:"text"`
	} `json:"question"`
	Correct   string   `json:"correctAnswer"`
	Incorrect []string `json:"incorrectAnswers"`
}

func (c *TriviaAPIClient) Name() string { return "trivia-api" }

func (c *TriviaAPIClient) Fetch(ctx context.Context, amount int) ([]RawQuestion, error) {
	values := url.Values{}
	values.Set("limit", fmt.Sprint(amount))
	if c.difficulty != "" {
		values.Set("difficulties", c.difficulty)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/questions?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("triviaapi non-200: %d", resp.StatusCode)
	}

	var payload []triviaAPIQuestion
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	out := make([]RawQuestion, 0, len(payload))
	for _, q := range payload {
		out = append(out, RawQuestion{Prompt: q.Question.Text, Correct: q.Correct, Incorrect: q.Incorrect})
	}
	return out, nil
}
