package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/corey/erpkb/internal/domain/catalog"
	"github.com/corey/erpkb/internal/domain/match"
	"github.com/corey/erpkb/internal/domain/registry"
	"github.com/corey/erpkb/internal/ports"
)

// maxMessageSize bounds one request line (1MB).
const maxMessageSize = 1024 * 1024

// Server is the daemon that listens on a Unix socket and serves knowledge
// queries against the capability registry.
type Server struct {
	reg        *registry.Registry
	thresholds match.Thresholds
	log        zerolog.Logger
	requests   *prometheus.CounterVec

	listener net.Listener
	sockPath string
	started  time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc

	done         chan struct{}
	shutdownCh   chan struct{} // closed when a remote shutdown request arrives
	shutdownOnce sync.Once
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewServer creates a daemon server over the given registry. reg may carry a
// prometheus registerer; pass nil to disable request metrics.
func NewServer(r *registry.Registry, th match.Thresholds, sockPath string, promReg prometheus.Registerer, log zerolog.Logger) *Server {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Server{
		reg:        r,
		thresholds: th,
		sockPath:   sockPath,
		log:        log.With().Str("component", "socket").Logger(),
		requests: promauto.With(promReg).NewCounterVec(prometheus.CounterOpts{
			Name: "erpkb_requests_total",
			Help: "Protocol requests served, by method and status.",
		}, []string{"method", "status"}),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		done:       make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Start begins listening on the Unix socket. Stale sockets (a previous
// daemon that died without cleanup) are detected by dialing first and
// removed before binding.
func (s *Server) Start() error {
	if _, err := os.Stat(s.sockPath); err == nil {
		conn, err := net.DialTimeout("unix", s.sockPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("daemon already running at %s", s.sockPath)
		}
		os.Remove(s.sockPath)
	}

	ln, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.started = time.Now()

	s.wg.Add(1)
	go s.acceptLoop()

	s.log.Info().Str("socket", s.sockPath).Msg("listening")
	return nil
}

// Stop gracefully shuts down the server, closing the listener and removing
// the socket file. Idempotent.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.baseCancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.sockPath)
	})
	return nil
}

// ShutdownCh returns a channel closed when a remote shutdown request is
// received. The daemon's main goroutine selects on this alongside OS
// signals.
func (s *Server) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

// Addr returns the socket path the server is listening on.
func (s *Server) Addr() string {
	return s.sockPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// In-flight store reads die with the connection or the server, so a
	// departed client cannot pin a slow load.
	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, maxMessageSize), maxMessageSize)
	writer := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(writer, Response{ID: uuid.NewString(), Error: "malformed request: " + err.Error()})
			continue
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		resp := s.dispatch(ctx, req)
		s.writeResponse(writer, resp)

		if req.Method == MethodShutdown {
			s.shutdownOnce.Do(func() { close(s.shutdownCh) })
			return
		}
	}
}

func (s *Server) writeResponse(w *bufio.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal response")
		return
	}
	w.Write(data)
	w.WriteByte('\n')
	w.Flush()
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	result, err := s.handle(ctx, req)
	if err != nil {
		if IsRejection(err) {
			s.requests.WithLabelValues(req.Method, "rejected").Inc()
			s.log.Info().Str("method", req.Method).Err(err).Msg("request rejected")
		} else {
			s.requests.WithLabelValues(req.Method, "error").Inc()
			s.log.Warn().Str("method", req.Method).Err(err).Msg("request failed")
		}
		return Response{ID: req.ID, Error: err.Error()}
	}
	s.requests.WithLabelValues(req.Method, "ok").Inc()
	return Response{ID: req.ID, Result: result}
}

func (s *Server) handle(ctx context.Context, req Request) (any, error) {
	switch req.Method {
	case MethodHealth:
		return s.handleHealth(), nil
	case MethodBackends:
		return s.handleBackends(), nil
	case MethodResolve:
		var p ResolveParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return s.handleResolve(ctx, p)
	case MethodNames:
		var p BackendParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return s.handleNames(ctx, p)
	case MethodSearch:
		var p SearchParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return s.handleSearch(ctx, p)
	case MethodReference:
		var p ReferenceParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return s.handleReference(ctx, p)
	case MethodValidate:
		var p ValidateParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return s.handleValidate(ctx, p)
	case MethodShutdown:
		return map[string]string{"status": "shutting down"}, nil
	default:
		return nil, fmt.Errorf("unknown method %q", req.Method)
	}
}

func (s *Server) handleHealth() HealthResult {
	return HealthResult{
		Status:   "ok",
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Backends: len(s.reg.Descriptors()),
	}
}

func (s *Server) handleBackends() BackendsResult {
	descs := s.reg.Descriptors()
	out := BackendsResult{Backends: make([]BackendInfo, 0, len(descs))}
	for _, d := range descs {
		out.Backends = append(out.Backends, BackendInfo{
			Key:          d.Key,
			Aliases:      d.Aliases,
			Capabilities: d.Capabilities.Names(),
			Version:      d.Version,
			Description:  d.Description,
		})
	}
	return out
}

// resolverFor maps wire params to the backend's catalog resolver.
func (s *Server) resolverFor(p BackendParams) (*catalog.Resolver, error) {
	f, err := s.reg.Facade(p.Backend)
	if err != nil {
		return nil, err
	}
	capability := p.Capability
	if capability == "" {
		capability = "knowledge"
	}
	return f.ResolverFor(capability)
}

func (s *Server) handleResolve(ctx context.Context, p ResolveParams) (any, error) {
	r, err := s.resolverFor(p.BackendParams)
	if err != nil {
		return nil, err
	}
	entry, err := r.Resolve(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return ResolveResult{Found: true, Entry: &EntryInfo{
			Name:    entry.Name,
			Content: entry.Content,
			UsedBy:  entry.UsedBy,
		}}, nil
	}
	suggestions, err := r.Suggest(ctx, p.Name, s.thresholds.For(match.KindTypo))
	if err != nil {
		return nil, err
	}
	return ResolveResult{Found: false, Suggestions: suggestions}, nil
}

func (s *Server) handleNames(ctx context.Context, p BackendParams) (any, error) {
	r, err := s.resolverFor(p)
	if err != nil {
		return nil, err
	}
	names, err := r.ListNames(ctx)
	if err != nil {
		return nil, err
	}
	return NamesResult{Names: names}, nil
}

func (s *Server) handleSearch(ctx context.Context, p SearchParams) (any, error) {
	r, err := s.resolverFor(p.BackendParams)
	if err != nil {
		return nil, err
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = s.thresholds.For(match.KindKeyword)
	}
	hits, err := r.SearchEntriesAll(ctx, p.Keywords, threshold)
	if err != nil {
		return nil, err
	}
	return SearchResult{Hits: hits}, nil
}

func (s *Server) handleReference(ctx context.Context, p ReferenceParams) (any, error) {
	r, err := s.resolverFor(p.BackendParams)
	if err != nil {
		return nil, err
	}
	name, err := r.FindCatalogForReference(ctx, p.Reference)
	if err != nil {
		return nil, err
	}
	return ReferenceResult{Found: name != "", Entry: name}, nil
}

func (s *Server) handleValidate(ctx context.Context, p ValidateParams) (any, error) {
	f, err := s.reg.Facade(p.Backend)
	if err != nil {
		return nil, err
	}
	v, err := f.Validator()
	if err != nil {
		return nil, err
	}
	return v.ValidateFields(ctx, p.Operation, p.Fields)
}

// decodeParams re-marshals the untyped params into the method's struct.
func decodeParams(params any, dst any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// IsRejection reports whether err is caller misuse (unknown backend or
// unsupported capability) rather than a server-side failure.
func IsRejection(err error) bool {
	return errors.Is(err, ports.ErrUnknownBackend) ||
		errors.Is(err, ports.ErrCapabilityNotSupported) ||
		errors.Is(err, ports.ErrDuplicateKey)
}
