package oauth

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Aareon/rtv/internal/logging"
)

//go:embed templates/index.html
var indexHTML string

// Messages rendered into the callback page. The handler picks one according
// to the redirect's query parameters.
const (
	msgSuccess = "All done, your terminal is now logged in! " +
		"You can close this window and go back to rtv."
	msgAccessDenied = "It looks like you declined the authorization request. " +
		"You can close this window and try again from the terminal."
	msgInvalid = "The response from reddit was missing required parameters, " +
		"so the authorization could not be completed."
	msgProviderError = "reddit reported an error during authorization: %s"
)

// CallbackParams holds the query parameters captured from the provider's
// redirect. An empty string means the parameter was absent.
type CallbackParams struct {
	State string
	Code  string
	Error string
}

// errServeStopped is the sentinel the accept loop returns on a requested
// stop; Serve swallows it.
var errServeStopped = errors.New("callback server stopped")

// CallbackServer is the local HTTP listener that captures a single browser
// redirect during the interactive flow.
//
// The port is bound at most once per server and the binding survives across
// serve cycles, so repeated authorize attempts reuse it. Stop halts the
// accept loop without releasing the socket; Close tears everything down.
type CallbackServer struct {
	logger *slog.Logger
	tmpl   *template.Template

	mu                sync.Mutex
	listener          *net.TCPListener
	params            CallbackParams
	shutdownOnRequest bool
	stopping          bool
	done              chan struct{}
}

// NewCallbackServer creates an unbound callback server.
func NewCallbackServer(logger *slog.Logger) *CallbackServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackServer{
		logger: logger,
		tmpl:   template.Must(template.New("index").Parse(indexHTML)),
	}
}

// Start binds the listener on the loopback interface. It is idempotent:
// once bound, further calls are no-ops regardless of the port argument.
func (s *CallbackServer) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("failed to bind callback port %d: %w", port, err)
	}
	s.listener = ln.(*net.TCPListener)
	s.logger.Debug("callback server bound", logging.Port(s.portLocked()))
	return nil
}

// Port returns the bound port, or 0 when the server has not started.
func (s *CallbackServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portLocked()
}

func (s *CallbackServer) portLocked() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// ResetParams clears any values left over from a previous attempt. Called
// at the start of every interactive attempt so stale parameters can never
// be mistaken for a fresh callback.
func (s *CallbackServer) ResetParams() {
	s.mu.Lock()
	s.params = CallbackParams{}
	s.mu.Unlock()
}

// Params returns the parameters captured by the most recent callback. Only
// meaningful after the serve cycle that captured them has finished.
func (s *CallbackServer) Params() CallbackParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetShutdownOnRequest controls whether the accept loop stops itself after
// answering a single callback.
func (s *CallbackServer) SetShutdownOnRequest(on bool) {
	s.mu.Lock()
	s.shutdownOnRequest = on
	s.mu.Unlock()
}

// Serve runs the accept loop until Stop is called, or, with
// shutdown-on-request enabled, until one callback has been answered. The
// listener stays bound when the loop returns. A stop requested since the
// previous cycle ended makes Serve return immediately.
//
// A loop orphaned by an earlier attempt (headless flow whose browser launch
// failed) is wound down before the new one takes over the listener.
func (s *CallbackServer) Serve() error {
	s.mu.Lock()
	ln := s.listener
	prev := s.done
	s.mu.Unlock()

	if ln == nil {
		return errors.New("callback server not started")
	}
	if prev != nil {
		s.Stop()
		<-prev
		// The wind-down request is spent once the orphan has exited,
		// whoever observed it; it must not cancel the cycle starting now.
		s.mu.Lock()
		s.stopping = false
		s.mu.Unlock()
	}

	done := make(chan struct{})
	s.mu.Lock()
	if s.stopping {
		// A Stop arrived before the loop could start. Honor it here;
		// clearing it instead would strand a caller joining on this cycle.
		s.stopping = false
		s.mu.Unlock()
		return nil
	}
	s.done = done
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.done = nil
		s.mu.Unlock()
		close(done)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleCallback)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	err := srv.Serve(&retainedListener{TCPListener: ln, server: s})
	if errors.Is(err, errServeStopped) {
		return nil
	}
	return err
}

// Stop requests the accept loop to return. The request is level-triggered:
// issued while no loop is running, it cancels the next serve cycle instead
// of being lost, so a stop racing Serve's startup can never strand a caller
// joining on the cycle. The port stays bound for later attempts.
func (s *CallbackServer) Stop() {
	s.mu.Lock()
	ln := s.listener
	s.stopping = true
	s.mu.Unlock()

	if ln != nil {
		// Wake a blocked Accept; the loop sees the stop flag and returns.
		_ = ln.SetDeadline(time.Now())
	}
}

// consumeStop reports whether a stop was requested, retiring the request
// so it cannot cancel a later cycle as well.
func (s *CallbackServer) consumeStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopping {
		return false
	}
	s.stopping = false
	return true
}

// Close releases the bound port. Only used on teardown; a closed server
// cannot be restarted.
func (s *CallbackServer) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.listener = nil
	return err
}

// handleCallback accepts GET / only, records the redirect's query
// parameters, and renders the result page.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	params := CallbackParams{
		State: q.Get("state"),
		Code:  q.Get("code"),
		Error: q.Get("error"),
	}

	// All three fields are overwritten together so a previous attempt's
	// values can never leak through.
	s.mu.Lock()
	s.params = params
	shutdown := s.shutdownOnRequest
	s.mu.Unlock()

	body := s.renderBody(params)
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if shutdown {
		// Stop from another goroutine; the handler must not wait for its
		// own accept loop.
		go s.Stop()
	}
}

func (s *CallbackServer) renderBody(params CallbackParams) []byte {
	var message string
	switch {
	case params.Error == "access_denied":
		message = msgAccessDenied
	case params.Error != "":
		message = fmt.Sprintf(msgProviderError, params.Error)
	case params.State == "" || params.Code == "":
		message = msgInvalid
	default:
		message = msgSuccess
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, map[string]string{"Message": message}); err != nil {
		s.logger.Error("failed to render callback page", logging.Err(err))
		return []byte(message)
	}
	return buf.Bytes()
}

// retainedListener stops the accept loop without closing the underlying
// socket, so the port stays bound between serve cycles.
type retainedListener struct {
	*net.TCPListener
	server *CallbackServer
}

// Accept waits for a connection, translating the deadline wake-up from Stop
// into the sentinel error the serve loop treats as a clean exit.
func (l *retainedListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.TCPListener.Accept()
		if err == nil {
			return conn, nil
		}
		if l.server.consumeStop() {
			// Clear the wake-up deadline for the next cycle.
			_ = l.TCPListener.SetDeadline(time.Time{})
			return nil, errServeStopped
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			// Stale deadline from a stop issued between cycles.
			_ = l.TCPListener.SetDeadline(time.Time{})
			continue
		}
		return nil, err
	}
}

// Close is invoked by net/http when the accept loop exits; the socket must
// survive for later serve cycles.
func (l *retainedListener) Close() error {
	return nil
}
