//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/projectplus/apiserver/config"
	"github.com/projectplus/apiserver/internal/db"
	"github.com/projectplus/apiserver/internal/server"
	"github.com/rs/zerolog"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srvCtx, stopServer := context.WithCancel(context.Background())
	done, err := startServer(srvCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		stopServer()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		stopServer()
		<-done
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	stopServer()
	<-done
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestProjectLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := fmt.Sprintf("%d", time.Now().UnixNano()%1_000_000)

	hostToken, err := signUp(t, baseURL, "h"+suffix)
	if err != nil {
		t.Fatalf("sign up host: %v", err)
	}
	candidateToken, err := signUp(t, baseURL, "c"+suffix)
	if err != nil {
		t.Fatalf("sign up candidate: %v", err)
	}

	project, err := createProject(t, baseURL, hostToken, "Campus Connect "+suffix)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if project.ID == 0 {
		t.Fatalf("expected project ID to be set")
	}
	if len(project.Documentation) != 1 {
		t.Fatalf("expected one documentation path, got %v", project.Documentation)
	}

	var sent struct {
		Request struct {
			ID int `json:"id"`
		} `json:"request"`
	}
	if err := call(t, http.MethodPost, baseURL+"/project/sendRequest", candidateToken, map[string]int{"projectId": project.ID}, http.StatusOK, &sent); err != nil {
		t.Fatalf("send request: %v", err)
	}

	decision := map[string]any{"requestId": sent.Request.ID, "status": "APPROVED"}
	if err := call(t, http.MethodPost, baseURL+"/project/requestResult", hostToken, decision, http.StatusOK, nil); err != nil {
		t.Fatalf("approve request: %v", err)
	}
	if err := call(t, http.MethodPost, baseURL+"/project/requestResult", hostToken, decision, http.StatusConflict, nil); err != nil {
		t.Fatalf("second decision: %v", err)
	}

	var details struct {
		Project projectResponse `json:"project"`
	}
	url := fmt.Sprintf("%s/project/getParticularProjectDetails?projectId=%d", baseURL, project.ID)
	if err := call(t, http.MethodGet, url, candidateToken, nil, http.StatusOK, &details); err != nil {
		t.Fatalf("get project: %v", err)
	}
	if len(details.Project.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(details.Project.Members))
	}

	if err := expectFile(t, baseURL+project.Documentation[0]); err != nil {
		t.Fatalf("fetch documentation: %v", err)
	}
}

type projectResponse struct {
	ID            int      `json:"id"`
	Name          string   `json:"pname"`
	Documentation []string `json:"documentation"`
	Members       []struct {
		CharusatID string `json:"charusatId"`
	} `json:"members"`
}

func signUp(t *testing.T, baseURL, charusatID string) (string, error) {
	t.Helper()

	email := charusatID + "@charusat.edu.in"
	payload := map[string]string{
		"email":      email,
		"password":   "testpass123!",
		"charusatId": charusatID,
		"firstName":  "Test",
		"lastName":   "Student",
		"institute":  "CSPIT",
		"department": "CE",
	}
	if err := call(t, http.MethodPost, baseURL+"/user/register", "", payload, http.StatusOK, nil); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}

	code, err := verificationCode(email)
	if err != nil {
		return "", err
	}
	verify := map[string]string{"email": email, "verificationCode": code}
	if err := call(t, http.MethodPost, baseURL+"/user/verify", "", verify, http.StatusOK, nil); err != nil {
		return "", fmt.Errorf("verify: %w", err)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	credentials := map[string]string{"email": email, "password": "testpass123!"}
	if err := call(t, http.MethodPost, baseURL+"/user/signin", "", credentials, http.StatusOK, &parsed); err != nil {
		return "", fmt.Errorf("sign in: %w", err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in sign-in response")
	}
	return parsed.Token, nil
}

// verificationCode reads the code from the database, since the mail is only
// delivered to a real inbox.
func verificationCode(email string) (string, error) {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg.Database))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var code sql.NullString
	err = conn.QueryRowContext(ctx, "SELECT verification_code FROM users WHERE email = $1", email).Scan(&code)
	if err != nil {
		return "", err
	}
	if !code.Valid || code.String == "" {
		return "", fmt.Errorf("no verification code for %s", email)
	}
	return code.String, nil
}

func createProject(t *testing.T, baseURL, token, name string) (projectResponse, error) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	_ = writer.WriteField("pname", name)
	_ = writer.WriteField("pdescription", "A directory of campus clubs.")
	_ = writer.WriteField("teamSize", "4")
	_ = writer.WriteField("pduration", "3 months")
	_ = writer.WriteField("requiredDomain", "Web,Mobile")
	_ = writer.WriteField("techStack", `["go","flutter"]`)

	part, err := writer.CreateFormFile("documentation", "overview.txt")
	if err != nil {
		return projectResponse{}, err
	}
	if _, err := part.Write([]byte("Campus Connect overview\n")); err != nil {
		return projectResponse{}, err
	}
	if err := writer.Close(); err != nil {
		return projectResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/project/createProject", &body)
	if err != nil {
		return projectResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return projectResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return projectResponse{}, fmt.Errorf("create project status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed struct {
		Project projectResponse `json:"project"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return projectResponse{}, err
	}
	return parsed.Project, nil
}

func call(t *testing.T, method, url, token string, payload any, wantStatus int, out any) error {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func expectFile(t *testing.T, url string) error {
	t.Helper()

	resp, err := http.Get(strings.ReplaceAll(url, " ", "%20"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if string(data) != "Campus Connect overview\n" {
		return fmt.Errorf("unexpected file content %q", data)
	}
	return nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "projectplus")
	_ = os.Setenv("DB_PASSWORD", "projectplus")
	_ = os.Setenv("DB_NAME", "projectplus")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "minio")
	_ = os.Setenv("MINIO_ENDPOINT", "localhost:9000")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "projectplus")
	_ = os.Setenv("REDIS_ADDR", "localhost:6379")
	_ = os.Setenv("RATE_LIMIT", "1000")
	_ = os.Setenv("MQ_BACKEND", "none")
}

func startServer(ctx context.Context) (<-chan struct{}, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(ctx, cfg, zerolog.Nop())
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()
	return done, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
