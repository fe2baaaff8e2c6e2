package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

// BaseHTTPSuite drives a running server over its public HTTP API.
// Scenarios register a throwaway account in SetupSuite and reuse its token.
type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	Client *http.Client
	Token  string
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL is not set, skipping end to end suite")
	}

	s.Client = &http.Client{Timeout: 2 * time.Minute}

	// One throwaway account per suite run
	email := fmt.Sprintf("e2e-%s@example.com", uuid.NewString()[:8])
	var out struct {
		Token string `json:"token"`
	}
	status := s.Call(http.MethodPost, "/api/v1/auth/register",
		map[string]string{"email": email, "password": "E2e-" + uuid.NewString()}, &out)
	s.Require().Equal(http.StatusCreated, status)
	s.Require().NotEmpty(out.Token)
	s.Token = out.Token
}

// Step prints a colorized header so scenario phases stand out in logs
func (s *BaseHTTPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call sends a JSON request with the suite token and decodes the response
// into out when out is not nil. It returns the HTTP status code.
func (s *BaseHTTPSuite) Call(method, path string, body any, out any) int {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.Config.ServerURL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	start := time.Now()
	resp, err := s.Client.Do(req)
	s.Require().NoError(err)
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	// Log full JSON response bodies if E2E_DEBUG_JSON is enabled
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nRESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	s.T().Log(logBuilder.String())

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}
