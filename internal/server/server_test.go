package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/projectplus/apiserver/internal/services"
	"github.com/projectplus/apiserver/internal/storage"
	"github.com/projectplus/apiserver/internal/store/memory"
	"github.com/projectplus/apiserver/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codeNotifier struct {
	mu       sync.Mutex
	codes    map[string]string
	outcomes []types.RequestStatus
}

func (n *codeNotifier) SendVerificationCode(_ context.Context, user types.User, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[user.Email] = code
	return nil
}

func (n *codeNotifier) SendResetCode(_ context.Context, user types.User, code string) error {
	return n.SendVerificationCode(context.Background(), user, code)
}

func (n *codeNotifier) NotifyJoinRequest(context.Context, types.User, types.User, types.Project) error {
	return nil
}

func (n *codeNotifier) NotifyRequestOutcome(_ context.Context, _ types.User, _ types.Project, status types.RequestStatus) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, status)
	return nil
}

func (n *codeNotifier) code(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

type apiClient struct {
	t       *testing.T
	baseURL string
}

func newAPI(t *testing.T) (*apiClient, *codeNotifier) {
	t.Helper()
	backend, err := storage.NewLocalDisk(t.TempDir())
	require.NoError(t, err)

	notifier := &codeNotifier{codes: map[string]string{}}
	router := NewRouter(Deps{
		Tx:       memory.New(),
		Files:    storage.NewStorage(backend),
		Notifier: notifier,
		Tokens:   services.NewTokenIssuer("test-secret", time.Hour),
		Logger:   zerolog.Nop(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiClient{t: t, baseURL: srv.URL}, notifier
}

func (c *apiClient) do(method, path, token, contentType string, body io.Reader) (int, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.baseURL+path, body)
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

func (c *apiClient) json(method, path, token string, payload any) (int, []byte) {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(data)
	}
	return c.do(method, path, token, "application/json", body)
}

// signUp registers, verifies and signs in a student, returning a bearer
// header value.
func (c *apiClient) signUp(notifier *codeNotifier, charusatID string) string {
	c.t.Helper()
	email := charusatID + "@charusat.edu.in"
	status, body := c.json(http.MethodPost, "/user/register", "", map[string]string{
		"email":      email,
		"password":   "password123",
		"charusatId": charusatID,
		"firstName":  "Asha",
		"lastName":   "Patel",
		"institute":  "CSPIT",
		"department": "CE",
	})
	require.Equal(c.t, http.StatusOK, status, string(body))

	status, body = c.json(http.MethodPost, "/user/signin", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(c.t, http.StatusForbidden, status, string(body))

	status, body = c.json(http.MethodPost, "/user/verify", "", map[string]string{
		"email":            email,
		"verificationCode": notifier.code(email),
	})
	require.Equal(c.t, http.StatusOK, status, string(body))

	status, body = c.json(http.MethodPost, "/user/signin", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(c.t, http.StatusOK, status, string(body))
	var signIn struct {
		Token string     `json:"token"`
		User  types.User `json:"user"`
	}
	require.NoError(c.t, json.Unmarshal(body, &signIn))
	require.NotEmpty(c.t, signIn.Token)
	assert.Equal(c.t, charusatID, signIn.User.CharusatID)
	return "Bearer " + signIn.Token
}

func TestAPI_ProjectCollaborationFlow(t *testing.T) {
	api, notifier := newAPI(t)
	host := api.signUp(notifier, "22ce001")
	candidate := api.signUp(notifier, "22ce002")

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	require.NoError(t, writer.WriteField("pname", "Smart Campus"))
	require.NoError(t, writer.WriteField("pdescription", "IoT for the campus"))
	require.NoError(t, writer.WriteField("teamSize", "3"))
	require.NoError(t, writer.WriteField("projectPrivacy", "public"))
	require.NoError(t, writer.WriteField("requiredDomain", `["IoT","Web"]`))
	require.NoError(t, writer.WriteField("techStack", "go, react"))
	part, err := writer.CreateFormFile("documentation", "brief.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 brief"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	status, body := api.do(http.MethodPost, "/project/createProject", host, writer.FormDataContentType(), &form)
	require.Equal(t, http.StatusOK, status, string(body))
	var created struct {
		Project types.Project `json:"project"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	project := created.Project
	assert.Equal(t, "22ce001", project.Host)
	assert.Equal(t, []string{"IoT", "Web"}, project.RequiredDomains)
	assert.Equal(t, []string{"go", "react"}, project.TechStack)
	require.Equal(t, []string{"/uploads/documentation/CSPIT/CE/22ce001/Smart Campus/brief.pdf"}, project.Documentation)

	status, body = api.do(http.MethodGet, "/uploads/documentation/CSPIT/CE/22ce001/Smart%20Campus/brief.pdf", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "%PDF-1.4 brief", string(body))

	status, body = api.json(http.MethodPost, "/project/addMentor", host, map[string]any{
		"projectId":  project.ID,
		"name":       "Dr. Mehta",
		"charusatId": "fac001",
		"email":      "mehta@charusat.ac.in",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var mentor struct {
		Mentor types.Mentor `json:"mentor"`
	}
	require.NoError(t, json.Unmarshal(body, &mentor))
	assert.Equal(t, project.ID, mentor.Mentor.ProjectID)

	status, body = api.json(http.MethodPost, "/project/sendRequest", candidate, map[string]int{"projectId": project.ID})
	require.Equal(t, http.StatusOK, status, string(body))
	var sent struct {
		Request types.JoinRequest `json:"request"`
	}
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, types.RequestPending, sent.Request.Status)

	status, body = api.json(http.MethodGet, "/project/showPrequest", host, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var pending struct {
		Requests []types.JoinRequestDetail `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(body, &pending))
	require.Len(t, pending.Requests, 1)
	assert.Equal(t, "22ce002", pending.Requests[0].User.CharusatID)

	status, _ = api.json(http.MethodPost, "/project/requestResult", candidate, map[string]any{"requestId": sent.Request.ID, "status": "APPROVED"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = api.json(http.MethodPost, "/project/requestResult", host, map[string]any{"requestId": sent.Request.ID, "status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = api.json(http.MethodPost, "/project/requestResult", host, map[string]any{"requestId": sent.Request.ID, "status": "approved"})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = api.json(http.MethodPost, "/project/requestResult", host, map[string]any{"requestId": sent.Request.ID, "status": "REJECTED"})
	assert.Equal(t, http.StatusConflict, status, string(body))
	assert.Equal(t, []types.RequestStatus{types.RequestApproved}, notifier.outcomes)

	status, body = api.json(http.MethodGet, "/project/getParticularProjectDetails?projectId="+strconv.Itoa(project.ID), candidate, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var details struct {
		Project types.Project `json:"project"`
	}
	require.NoError(t, json.Unmarshal(body, &details))
	require.Len(t, details.Project.Members, 2)

	status, body = api.json(http.MethodGet, "/project/getUserCurrWorkingProject", candidate, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var working struct {
		Projects []types.Project `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(body, &working))
	require.Len(t, working.Projects, 1)
	assert.Equal(t, project.ID, working.Projects[0].ID)

	status, body = api.json(http.MethodGet, "/project/getAllProjects?minTeamSize=3&maxTeamSize=3&domains=IoT", candidate, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &working))
	assert.Len(t, working.Projects, 1)

	status, body = api.json(http.MethodGet, "/project/getAllProjects?minTeamSize=abc", candidate, nil)
	assert.Equal(t, http.StatusBadRequest, status, string(body))
}

func TestAPI_ProfileUpdate(t *testing.T) {
	api, notifier := newAPI(t)
	token := api.signUp(notifier, "22ce010")

	status, body := api.json(http.MethodPost, "/profile/createProfile", token, map[string]any{
		"aboutMe": "First draft",
		"domain":  "Backend",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var created types.Profile
	status, body = api.json(http.MethodGet, "/profile/getProfile", token, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "First draft", created.User.AboutMe)
	assert.Equal(t, "Backend", created.User.Domain)

	status, body = api.json(http.MethodPost, "/profile/updateProfile", token, map[string]any{
		"aboutMe":  "Backend enthusiast",
		"currCgpa": 8.7,
		"skills":   "go, sql",
		"experiences": []map[string]string{
			{"title": "Intern", "company": "Acme", "duration": "3 months"},
		},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	// A bare token is accepted as well.
	status, body = api.json(http.MethodGet, "/profile/getProfile", token[len("Bearer "):], nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var profile types.Profile
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, "Backend enthusiast", profile.User.AboutMe)
	require.Len(t, profile.Skills, 2)
	assert.Equal(t, "go", profile.Skills[0].Skill)
	require.Len(t, profile.Experiences, 1)

	status, body = api.json(http.MethodPost, "/profile/updateProfile", token, map[string]any{"currCgpa": 11})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = api.json(http.MethodDelete, "/profile/deleteCertificate", token, map[string]int{"certificateId": 99})
	assert.Equal(t, http.StatusNotFound, status, string(body))

	status, body = api.json(http.MethodGet, "/user/profile?charusatId=22ce010", token, nil)
	require.Equal(t, http.StatusOK, status, string(body))
}

func TestAPI_Unauthorized(t *testing.T) {
	api, _ := newAPI(t)

	status, body := api.json(http.MethodGet, "/profile/getProfile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"message":"unauthorized, sign in again"}`, string(body))

	status, _ = api.json(http.MethodGet, "/project/getAllProjects", "Bearer not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.json(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = api.do(http.MethodGet, "/uploads/missing.png", "", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
