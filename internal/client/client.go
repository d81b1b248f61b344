package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/response"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status    int
	Code      response.ErrCode
	Message   string
	Fields    map[string]string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error %s (%d): %s", e.Code, e.Status, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code response.ErrCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type envelope struct {
	Data     json.RawMessage     `json:"data"`
	Error    *response.ErrorBody `json:"error"`
	Metadata response.Metadata   `json:"metadata"`
}

// Client talks to the exam server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

func New(baseURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "ApiClient").Logger(),
	}
}

func (c *Client) Token() string { return c.token }

func (c *Client) SetToken(token string) { c.token = token }

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	var out model.LoginResponse
	req := model.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*model.Profile, error) {
	var out model.Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchExamInfo(ctx context.Context, examID string) (*model.ExamInfo, error) {
	var out model.ExamInfo
	if err := c.do(ctx, http.MethodGet, "/exams/"+url.PathEscape(examID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartAttempt is idempotent: it returns the running attempt if one exists.
func (c *Client) StartAttempt(ctx context.Context, examID string) (*model.AttemptRef, error) {
	var out model.AttemptRef
	if err := c.do(ctx, http.MethodPost, "/exams/"+url.PathEscape(examID)+"/start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchPaper(ctx context.Context, examID string) (*model.AttemptPaper, error) {
	var out model.AttemptPaper
	if err := c.do(ctx, http.MethodGet, "/exams/"+url.PathEscape(examID)+"/paper", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FinishAttempt(ctx context.Context, attemptID string, answers map[string]int) (*model.FinishAttemptResponse, error) {
	var out model.FinishAttemptResponse
	req := model.FinishAttemptRequest{Answers: answers}
	if err := c.do(ctx, http.MethodPost, "/attempts/"+url.PathEscape(attemptID)+"/finish", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateExamSettings(ctx context.Context, examID string, req model.UpdateExamSettingsRequest) (*model.ExamSettings, error) {
	var out model.ExamSettings
	if err := c.do(ctx, http.MethodPatch, "/admin/exams/"+url.PathEscape(examID)+"/settings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchExamSettings reads the admin-tunable options of an exam.
func (c *Client) FetchExamSettings(ctx context.Context, examID string) (*model.ExamSettings, error) {
	var out model.ExamSettings
	if err := c.do(ctx, http.MethodGet, "/admin/exams/"+url.PathEscape(examID)+"/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateExam creates a draft exam.
func (c *Client) CreateExam(ctx context.Context, req model.CreateExamRequest) (*model.Exam, error) {
	var out model.Exam
	if err := c.do(ctx, http.MethodPost, "/admin/exams", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type questionList struct {
	Questions []model.Question `json:"questions"`
}

// ListQuestions returns an exam's questions with their answer keys.
func (c *Client) ListQuestions(ctx context.Context, examID string) ([]model.Question, error) {
	var out questionList
	if err := c.do(ctx, http.MethodGet, questionsPath(examID), nil, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func (c *Client) AddQuestion(ctx context.Context, examID string, req model.CreateQuestionRequest) (*model.Question, error) {
	var out model.Question
	if err := c.do(ctx, http.MethodPost, questionsPath(examID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateQuestion(ctx context.Context, examID, questionID string, req model.UpdateQuestionRequest) (*model.Question, error) {
	var out model.Question
	if err := c.do(ctx, http.MethodPatch, questionsPath(examID)+"/"+url.PathEscape(questionID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteQuestion(ctx context.Context, examID, questionID string) error {
	return c.do(ctx, http.MethodDelete, questionsPath(examID)+"/"+url.PathEscape(questionID), nil, nil)
}

// ReorderQuestions sets the display order; ids must name every question once.
func (c *Client) ReorderQuestions(ctx context.Context, examID string, ids []string) ([]model.Question, error) {
	var out questionList
	req := model.ReorderQuestionsRequest{QuestionIDs: ids}
	if err := c.do(ctx, http.MethodPut, questionsPath(examID)+"/order", req, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func questionsPath(examID string) string {
	return "/admin/exams/" + url.PathEscape(examID) + "/questions"
}

// StreamURL returns the websocket autosave endpoint of an attempt.
func (c *Client) StreamURL(attemptID string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return fmt.Sprintf("%s/ws/v1/attempts/%s/stream?token=%s",
		base, url.PathEscape(attemptID), url.QueryEscape(c.token))
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("Request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("API call")

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 300 || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode, RequestID: env.Metadata.RequestID}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}
