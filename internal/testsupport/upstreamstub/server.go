package upstreamstub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// TokenLocation selects where the stub returns the access token from a
// successful login, mirroring the two behaviours seen across real VCF
// deployments.
type TokenLocation int

const (
	TokenInHeader TokenLocation = iota
	TokenInBody
	TokenNowhere
)

// ListShape selects the JSON envelope the virtual-centers endpoint wraps its
// records in.
type ListShape int

const (
	ShapeBareArray ListShape = iota
	ShapeElements
	ShapeItems
	ShapeInvalid
)

// Options describes how the fake VCF API should behave.
type Options struct {
	// Username and Password are the credentials the login endpoint accepts.
	// Any other pair receives HTTP 401.
	Username string
	Password string

	// Token is returned from successful logins and required as the bearer
	// credential on the virtual-centers endpoint.
	Token         string
	TokenLocation TokenLocation

	// VirtualCenters are the raw records served from the listing endpoint.
	VirtualCenters []map[string]any
	ListShape      ListShape

	// LoginStatus and FetchStatus, when non-zero, force the corresponding
	// endpoint to answer with that HTTP status and Body.
	LoginStatus int
	FetchStatus int
	Body        string
}

// Server hosts a single httptest.Server that serves the login and
// virtual-centers endpoints.
type Server struct {
	server *httptest.Server
	opts   Options

	mu           sync.Mutex
	loginCalls   int
	fetchCalls   int
	lastUsername string
}

// Start spins up a new VCF API stub using the provided options.
func Start(opts Options) *Server {
	s := &Server{opts: opts}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Close shuts down the underlying HTTP server.
func (s *Server) Close() {
	if s.server != nil {
		s.server.Close()
	}
}

// BaseURL returns the HTTP base URL of the stub.
func (s *Server) BaseURL() string {
	return s.server.URL
}

// LoginCalls reports how many login requests the stub has served.
func (s *Server) LoginCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCalls
}

// FetchCalls reports how many virtual-center listings the stub has served.
func (s *Server) FetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

// LastUsername returns the username presented on the most recent login.
func (s *Server) LastUsername() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsername
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/session":
		s.handleLogin(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/v1/virtual-centers":
		s.handleFetch(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.loginCalls++
	s.mu.Unlock()

	if s.opts.LoginStatus != 0 {
		w.WriteHeader(s.opts.LoginStatus)
		_, _ = w.Write([]byte(s.opts.Body))
		return
	}

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.lastUsername = creds.Username
	s.mu.Unlock()

	if creds.Username != s.opts.Username || creds.Password != s.opts.Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch s.opts.TokenLocation {
	case TokenInHeader:
		w.Header().Set("x-vmware-vcloud-access-token", s.opts.Token)
		w.WriteHeader(http.StatusOK)
	case TokenInBody:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": s.opts.Token})
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.fetchCalls++
	s.mu.Unlock()

	if s.opts.FetchStatus != 0 {
		w.WriteHeader(s.opts.FetchStatus)
		_, _ = w.Write([]byte(s.opts.Body))
		return
	}

	authorization := r.Header.Get("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
	if token == "" || token != s.opts.Token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch s.opts.ListShape {
	case ShapeElements:
		_ = json.NewEncoder(w).Encode(map[string]any{"elements": s.opts.VirtualCenters})
	case ShapeItems:
		_ = json.NewEncoder(w).Encode(map[string]any{"items": s.opts.VirtualCenters})
	case ShapeInvalid:
		_ = json.NewEncoder(w).Encode(map[string]any{"unexpected": "shape"})
	default:
		_ = json.NewEncoder(w).Encode(s.opts.VirtualCenters)
	}
}
