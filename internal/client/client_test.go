package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tutor-gateway/internal/config"
)

func newTestClient(t *testing.T, serverURL string) *AIClient {
	t.Helper()
	c, err := NewAIClient(&config.Config{
		UpstreamBaseURL:     serverURL,
		UpstreamTimeout:     2 * time.Second,
		UpstreamBearerToken: "svc-token",
		CSRFCookieName:      "csrftoken",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAIClient: %v", err)
	}
	return c
}

func TestSendMessage(t *testing.T) {
	var gotPath, gotUserID, gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUserID = r.URL.Query().Get("user_id")
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"user_message": map[string]interface{}{
				"id": 10, "role": "user", "content": "hi", "timestamp": time.Now(),
			},
			"ai_response": map[string]interface{}{
				"id": 11, "role": "ai", "content": "hello!", "timestamp": time.Now(),
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ex, err := c.SendMessage(context.Background(), 7, "hi")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if gotPath != "/api/ai/chat/" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUserID != "7" {
		t.Errorf("user_id = %q", gotUserID)
	}
	if gotAuth != "Bearer svc-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody["message"] != "hi" {
		t.Errorf("body = %v", gotBody)
	}
	if ex.UserMessage.ID != 10 || ex.AIResponse.ID != 11 {
		t.Errorf("exchange ids = %d, %d", ex.UserMessage.ID, ex.AIResponse.ID)
	}
}

func TestSendMessageRequiresUserID(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	if _, err := c.SendMessage(context.Background(), 0, "hi"); !errors.Is(err, ErrMissingUserID) {
		t.Errorf("err = %v, want ErrMissingUserID", err)
	}
}

func TestSendMessageSuccessFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "model overloaded"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.SendMessage(context.Background(), 7, "hi")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != "model overloaded" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestSendMessageNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.SendMessage(context.Background(), 7, "hi")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
}

func TestCSRFCookieEcho(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok-123", Path: "/"})
			json.NewEncoder(w).Encode(map[string]bool{"success": true})
		default:
			gotToken = r.Header.Get("X-CSRFToken")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"course":  "CS101", "topic": "Heaps", "session_id": "s-1", "total_questions": 5,
			})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	// The health probe receives the CSRF cookie; the following POST must
	// echo it back in the header.
	if !c.Health(context.Background()) {
		t.Fatal("health probe failed")
	}
	if _, err := c.GeneratePractice(context.Background(), GeneratePracticeRequest{Course: "CS101"}); err != nil {
		t.Fatalf("GeneratePractice: %v", err)
	}
	if gotToken != "tok-123" {
		t.Errorf("X-CSRFToken = %q, want tok-123", gotToken)
	}
}

func TestHealthUnreachableIsUnhealthy(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	if c.Health(context.Background()) {
		t.Error("unreachable upstream reported healthy")
	}
}

func TestHistory(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"messages": []map[string]interface{}{
				{"id": 1, "role": "user", "content": "q", "timestamp": time.Now()},
				{"id": 2, "role": "ai", "content": "a", "timestamp": time.Now()},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	msgs, err := c.History(context.Background(), 7, 50)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if gotLimit != "50" {
		t.Errorf("limit = %q", gotLimit)
	}
	if len(msgs) != 2 || msgs[0].ID != 1 {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestQuestionsPathEscaping(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"questions": []map[string]interface{}{
				{"id": 1, "type": "multiple_choice", "prompt": "?", "options": []string{"a", "b"}, "max_score": 5},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	qs, err := c.Questions(context.Background(), "sess/420")
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	if gotPath != "/api/ai/questions/session/sess%2F420" {
		t.Errorf("path = %q", gotPath)
	}
	if len(qs) != 1 || qs[0].MaxScore != 5 {
		t.Errorf("questions = %+v", qs)
	}
}

func TestResultsQuery(t *testing.T) {
	var gotStudent, gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStudent = r.URL.Query().Get("student_id")
		gotSession = r.URL.Query().Get("session_id")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "results": []interface{}{}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	results, err := c.Results(context.Background(), 7, "s-1")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if gotStudent != "7" || gotSession != "s-1" {
		t.Errorf("query = student:%q session:%q", gotStudent, gotSession)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v", results)
	}
}

func TestSubmitAnswers(t *testing.T) {
	var gotReq submitAnswersRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"results": []map[string]interface{}{
				{"question_id": 11, "score": 5, "max_score": 5, "student_answer": "green"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	results, err := c.SubmitAnswers(context.Background(), "s-1", 7, []SubmittedAnswer{
		{QuestionDBID: 11, Answer: "green"},
	})
	if err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}

	if gotReq.SessionID != "s-1" || gotReq.StudentID != 7 {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Answers) != 1 || gotReq.Answers[0].QuestionDBID != 11 {
		t.Errorf("answers = %+v", gotReq.Answers)
	}
	if len(results) != 1 || results[0].Score != 5 {
		t.Errorf("results = %+v", results)
	}
}

func TestTimeoutEnforced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	c, err := NewAIClient(&config.Config{
		UpstreamBaseURL: srv.URL,
		UpstreamTimeout: 50 * time.Millisecond,
		CSRFCookieName:  "csrftoken",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAIClient: %v", err)
	}

	if _, err := c.History(context.Background(), 7, 10); err == nil {
		t.Error("expected a timeout error")
	}
}
