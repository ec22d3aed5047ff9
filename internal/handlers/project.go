package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/projectplus/apiserver/internal/services"
	"github.com/projectplus/apiserver/types"
)

const (
	formFieldDocumentation = "documentation"
	formFieldDeleteDocs    = "deleteDocs"
)

// ProjectHandler serves projects, mentors and join requests.
type ProjectHandler struct {
	projects *services.ProjectService
	requests *services.JoinRequestService
}

func NewProjectHandler(projects *services.ProjectService, requests *services.JoinRequestService) *ProjectHandler {
	return &ProjectHandler{projects: projects, requests: requests}
}

// ProjectRouter registers /project routes. Every route requires auth.
func ProjectRouter(
	r chi.Router,
	projects *services.ProjectService,
	requests *services.JoinRequestService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewProjectHandler(projects, requests)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/createProject", handler.CreateProject)
		r.Post("/updateProject", handler.UpdateProject)
		r.Post("/addMentor", handler.AddMentor)
		r.Get("/getAllProjects", handler.GetAllProjects)
		r.Get("/getParticularProjectDetails", handler.GetProjectDetails)
		r.Get("/getUserCurrWorkingProject", handler.GetUserCurrWorkingProject)

		r.Post("/sendRequest", handler.SendRequest)
		r.Post("/requestResult", handler.RequestResult)
		r.Get("/showHostedProjectRequests", handler.ShowHostedProjectRequests)
		r.Get("/showPrequest", handler.ShowHostedProjectRequests)
		r.Get("/showPrequestForParticularProject", handler.ShowProjectRequests)
	})
}

// projectRequest is the body of createProject and updateProject. Pointer
// fields distinguish "absent" from "empty" on update.
type projectRequest struct {
	ProjectID       *int       `json:"projectId"`
	Name            *string    `json:"pname"`
	Description     *string    `json:"pdescription"`
	Definition      *string    `json:"pdefinition"`
	TeamSize        *int       `json:"teamSize"`
	Duration        *string    `json:"pduration"`
	Privacy         *string    `json:"projectPrivacy"`
	RequiredDomains stringList `json:"requiredDomain"`
	TechStack       stringList `json:"techStack"`
	DeleteDocs      stringList `json:"deleteDocs"`
}

func (p projectRequest) input() types.ProjectInput {
	in := types.ProjectInput{
		RequiredDomains: p.RequiredDomains,
		TechStack:       p.TechStack,
	}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Definition != nil {
		in.Definition = *p.Definition
	}
	if p.TeamSize != nil {
		in.TeamSize = *p.TeamSize
	}
	if p.Duration != nil {
		in.Duration = *p.Duration
	}
	if p.Privacy != nil {
		in.Privacy = *p.Privacy
	}
	return in
}

func (p projectRequest) update() types.ProjectUpdate {
	return types.ProjectUpdate{
		Name:            p.Name,
		Description:     p.Description,
		Definition:      p.Definition,
		TeamSize:        p.TeamSize,
		Duration:        p.Duration,
		Privacy:         p.Privacy,
		RequiredDomains: p.RequiredDomains,
		TechStack:       p.TechStack,
	}
}

// readProjectRequest decodes a multipart form or a JSON body. Uploaded
// documentation files are only read from multipart requests.
func readProjectRequest(r *http.Request) (projectRequest, []types.Upload, error) {
	var req projectRequest
	if !isMultipart(r) {
		if err := decodeJSON(r, &req); err != nil {
			return req, nil, err
		}
		return req, nil, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return req, nil, errors.New("invalid multipart form")
	}
	form := r.MultipartForm

	var err error
	if req.ProjectID, err = formInt(form, "projectId"); err != nil {
		return req, nil, err
	}
	if req.TeamSize, err = formInt(form, "teamSize"); err != nil {
		return req, nil, err
	}
	req.Name = formString(form, "pname")
	req.Description = formString(form, "pdescription")
	req.Definition = formString(form, "pdefinition")
	req.Duration = formString(form, "pduration")
	req.Privacy = formString(form, "projectPrivacy")
	req.RequiredDomains = formList(form, "requiredDomain")
	req.TechStack = formList(form, "techStack")
	req.DeleteDocs = formList(form, formFieldDeleteDocs)

	docs, err := readUploads(form, formFieldDocumentation, services.MaxDocumentationFiles)
	if err != nil {
		return req, nil, err
	}
	return req, docs, nil
}

func formString(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	value := values[0]
	return &value
}

// formList joins repeated keys and expands JSON or CSV values.
func formList(form *multipart.Form, key string) []string {
	values, ok := form.Value[key]
	if !ok {
		return nil
	}
	list := []string{}
	for _, value := range values {
		list = append(list, parseList(value)...)
	}
	return list
}

func formInt(form *multipart.Form, key string) (*int, error) {
	raw := formString(form, key)
	if raw == nil {
		return nil, nil
	}
	n, err := parseOptionalInt(*raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

type projectResponse struct {
	Message string        `json:"message"`
	Project types.Project `json:"project"`
}

type projectsResponse struct {
	Message  string          `json:"message"`
	Projects []types.Project `json:"projects"`
}

type mentorResponse struct {
	Message string       `json:"message"`
	Mentor  types.Mentor `json:"mentor"`
}

type sendRequestBody struct {
	ProjectID int `json:"projectId"`
}

type requestResultBody struct {
	RequestID int    `json:"requestId"`
	Status    string `json:"status"`
}

type joinRequestResponse struct {
	Message string            `json:"message"`
	Request types.JoinRequest `json:"request"`
}

type joinRequestsResponse struct {
	Message  string                    `json:"message"`
	Requests []types.JoinRequestDetail `json:"requests"`
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	req, docs, err := readProjectRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.CreateProject(r.Context(), id, req.input(), docs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Message: "Project created successfully", Project: project})
}

// UpdateProject reads projectId from the body, falling back to the query.
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	req, docs, err := readProjectRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	projectID := 0
	if req.ProjectID != nil {
		projectID = *req.ProjectID
	} else if projectID, err = parseID(r, "projectId"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if projectID < 1 {
		writeError(w, http.StatusBadRequest, "invalid projectId")
		return
	}

	project, err := h.projects.UpdateProject(r.Context(), id, projectID, req.update(), req.DeleteDocs, docs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Message: "Project updated successfully", Project: project})
}

func (h *ProjectHandler) AddMentor(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req services.MentorInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mentor, err := h.projects.AddMentor(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mentorResponse{Message: "Mentor added successfully", Mentor: mentor})
}

func (h *ProjectHandler) GetAllProjects(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := types.ProjectFilter{
		HostRole: query.Get("hostRole"),
		Privacy:  query.Get("privacy"),
		Search:   query.Get("search"),
	}
	for _, raw := range query["domains"] {
		filter.Domains = append(filter.Domains, parseList(raw)...)
	}

	var err error
	if filter.MinTeamSize, err = parseOptionalInt(query.Get("minTeamSize")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid minTeamSize")
		return
	}
	if filter.MaxTeamSize, err = parseOptionalInt(query.Get("maxTeamSize")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid maxTeamSize")
		return
	}

	projects, err := h.projects.GetAllProjects(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectsResponse{Message: "Projects fetched successfully", Projects: nonNil(projects)})
}

func (h *ProjectHandler) GetProjectDetails(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.GetProjectDetails(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Message: "Project fetched successfully", Project: project})
}

func (h *ProjectHandler) GetUserCurrWorkingProject(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	projects, err := h.projects.GetUserCurrWorkingProjects(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectsResponse{Message: "Projects fetched successfully", Projects: nonNil(projects)})
}

func (h *ProjectHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req sendRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProjectID < 1 {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}

	request, err := h.requests.SendRequest(r.Context(), id, req.ProjectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinRequestResponse{Message: "Request sent successfully", Request: request})
}

func (h *ProjectHandler) RequestResult(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req requestResultBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RequestID < 1 {
		writeError(w, http.StatusBadRequest, "requestId is required")
		return
	}

	request, err := h.requests.RequestResult(r.Context(), id, req.RequestID, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	message := "Request " + strings.ToLower(string(request.Status)) + " successfully"
	writeJSON(w, http.StatusOK, joinRequestResponse{Message: message, Request: request})
}

func (h *ProjectHandler) ShowHostedProjectRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	requests, err := h.requests.ShowHostedProjectRequests(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinRequestsResponse{Message: "Requests fetched successfully", Requests: nonNil(requests)})
}

func (h *ProjectHandler) ShowProjectRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	projectID, err := parseID(r, "projectId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	requests, err := h.requests.ShowProjectRequests(r.Context(), id, projectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinRequestsResponse{
		Message:  "Requests for project " + strconv.Itoa(projectID) + " fetched successfully",
		Requests: nonNil(requests),
	})
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
