package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"streamctl/internal/core/domain"
	"streamctl/internal/core/ports"
	"streamctl/internal/infrastructure/pipelines"
	"streamctl/pkg/config"
	apperrors "streamctl/pkg/errors"
	rlog "streamctl/pkg/logger"
	"streamctl/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options tunes the websocket transport.
type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PingInterval:   cfg.Signal.PingInterval,
		PongTimeout:    cfg.Signal.PongTimeout,
		WriteTimeout:   cfg.Signal.WriteTimeout,
		MaxMessageSize: cfg.Signal.MaxMessageSize,
		SendBuffer:     cfg.Signal.SendBuffer,
		AllowedOrigins: cfg.Signal.AllowedOrigins,
	}
}

// Services are the components the hub dispatches commands to.
type Services struct {
	Credentials ports.CredentialService
	Tokens      ports.TokenService
	Config      ports.ConfigService
	Streams     ports.StreamService
	Pipelines   ports.PipelineLister
	Network     ports.NetworkService
	System      ports.SystemCommander
	Metrics     ports.MetricsCollector
}

// Filter selects broadcast recipients.
type Filter func(*Session) bool

// AllAuthenticated selects every authenticated session.
func AllAuthenticated() Filter {
	return func(s *Session) bool { return s.IsAuthenticated() }
}

// AuthenticatedExcept selects every authenticated session but origin.
func AuthenticatedExcept(origin *Session) Filter {
	return func(s *Session) bool { return s != origin && s.IsAuthenticated() }
}

// Hub owns the control sessions and routes their commands.
type Hub struct {
	opts           Options
	svc            Services
	upgrader       websocket.Upgrader
	newAuthLimiter func() *rate.Limiter

	sessions map[*Session]struct{}
	mu       sync.RWMutex

	log    *rlog.ContextLogger
	logger *zap.SugaredLogger
}

func NewHub(opts Options, svc Services, newAuthLimiter func() *rate.Limiter, logger *zap.Logger) *Hub {
	if newAuthLimiter == nil {
		newAuthLimiter = func() *rate.Limiter { return rate.NewLimiter(rate.Inf, 0) }
	}
	h := &Hub{
		opts:           opts,
		svc:            svc,
		newAuthLimiter: newAuthLimiter,
		sessions:       make(map[*Session]struct{}),
		log:            rlog.NewContextLogger(logger),
		logger:         logger.Sugar(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	// Same host as the page that served the UI.
	return u.Host == r.Host
}

// HandleWebSocket upgrades the request and runs the session until the
// connection closes.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	h.ServeHTTP(c.Writer, c.Request)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	id := uuid.NewString()
	ctx := rlog.WithRemoteAddr(rlog.WithSessionID(context.Background(), id), r.RemoteAddr)
	s := &Session{
		id:          id,
		hub:         h,
		conn:        conn,
		ctx:         ctx,
		authLimiter: h.newAuthLimiter(),
		logger:      h.log.Sugar(ctx),
		send:        make(chan []byte, h.opts.SendBuffer),
	}

	h.register(s)
	go s.writePump()
	s.readPump()
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	count := len(h.sessions)
	h.mu.Unlock()

	h.svc.Metrics.RecordSessionOpened()
	s.logger.Infow("session opened", "sessions", count)
}

func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	_, existed := h.sessions[s]
	delete(h.sessions, s)
	count := len(h.sessions)
	h.mu.Unlock()

	if existed {
		s.closeSend()
		h.svc.Metrics.RecordSessionClosed()
		s.logger.Infow("session closed", "sessions", count)
	}
}

// Run blocks until ctx is done, then closes every session.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.closeAll()
	return nil
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.closeSend()
	}
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast sends {typ: payload} to every session filter selects.
func (h *Hub) Broadcast(typ string, payload interface{}, filter Filter) {
	data, err := encodeFrame(typ, payload)
	if err != nil {
		h.logger.Errorw("failed to marshal broadcast", "type", typ, "error", err)
		return
	}

	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	sent := 0
	for _, s := range sessions {
		if filter(s) && s.trySend(data) {
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debugw("broadcast sent", "type", typ, "recipients", sent)
	}
}

// PublishStatus is the stream supervisor's state listener.
func (h *Hub) PublishStatus(state domain.StreamingState) {
	h.Broadcast(TypeStatus, domain.StatusFrame{IsStreaming: state == domain.StreamingRunning}, AllAuthenticated())
}

// PublishNetif is the network monitor's update listener.
func (h *Hub) PublishNetif(metrics domain.InterfaceMetrics) {
	h.Broadcast(TypeNetif, metrics, AllAuthenticated())
}

func (h *Hub) handleFrame(s *Session, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Debugw("ignoring malformed frame", "error", err)
		return
	}

	if raw, ok := frame[KeyAuth]; ok {
		h.dispatch(s, KeyAuth, raw, h.handleAuth)
	}
	if !s.IsAuthenticated() {
		return
	}

	for _, key := range dispatchOrder {
		raw, ok := frame[key]
		if !ok {
			continue
		}
		// A logout earlier in the frame ends the session's rights.
		if !s.IsAuthenticated() {
			return
		}
		switch key {
		case KeyConfig:
			h.dispatch(s, key, raw, h.handleConfig)
		case KeyStart:
			h.dispatch(s, key, raw, h.handleStart)
		case KeyStop:
			h.dispatch(s, key, raw, h.handleStop)
		case KeyBitrate:
			h.dispatch(s, key, raw, h.handleBitrate)
		case KeyCommand:
			h.dispatch(s, key, raw, h.handleCommand)
		case KeyLogout:
			h.dispatch(s, key, raw, h.handleLogout)
		}
	}
}

func (h *Hub) dispatch(s *Session, key string, raw json.RawMessage, fn func(context.Context, *Session, json.RawMessage)) {
	ctx, span := tracing.TraceControlMessage(s.ctx, key, s.id)
	defer span.End()
	fn(ctx, s, raw)
}

// reportError logs err and tells the originating session.
func (h *Hub) reportError(ctx context.Context, s *Session, action string, err error) {
	tracing.RecordError(ctx, err)
	if apperrors.IsValidation(err) || apperrors.HasCode(err, apperrors.ErrCodeConflict) {
		s.logger.Infow(action+" rejected", "error", err)
	} else {
		s.logger.Errorw(action+" failed", "error", err)
	}
	s.sendError(apperrors.OperatorMessage(err))
}

func (h *Hub) handleAuth(ctx context.Context, s *Session, raw json.RawMessage) {
	var req AuthRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendFrame(TypeAuth, AuthReply{Success: false})
		return
	}

	method := "token"
	if req.Password != nil {
		method = "password"
	}
	if !s.authLimiter.Allow() {
		s.logger.Warnw("auth attempt rate limited", "method", method)
		h.svc.Metrics.RecordAuthAttempt(method, false)
		s.sendFrame(TypeAuth, AuthReply{Success: false})
		return
	}

	switch {
	case req.Password != nil:
		h.authPassword(ctx, s, *req.Password, req.PersistentToken)
	case req.Token != nil:
		h.authToken(ctx, s, domain.Token(*req.Token))
	default:
		h.svc.Metrics.RecordAuthAttempt(method, false)
		s.sendFrame(TypeAuth, AuthReply{Success: false})
	}
}

func (h *Hub) authPassword(ctx context.Context, s *Session, password string, persistent bool) {
	ok, err := h.svc.Credentials.Authenticate(ctx, password)
	if err != nil {
		h.svc.Metrics.RecordAuthAttempt("password", false)
		s.sendFrame(TypeAuth, AuthReply{Success: false})
		h.reportError(ctx, s, "password setup", err)
		return
	}
	if !ok {
		h.svc.Metrics.RecordAuthAttempt("password", false)
		s.logger.Infow("password rejected")
		s.sendFrame(TypeAuth, AuthReply{Success: false})
		return
	}

	tok, err := h.svc.Tokens.Issue(ctx, persistent)
	if err != nil {
		h.svc.Metrics.RecordAuthAttempt("password", false)
		s.sendFrame(TypeAuth, AuthReply{Success: false})
		h.reportError(ctx, s, "token issue", err)
		return
	}

	h.svc.Metrics.RecordAuthAttempt("password", true)
	s.authenticate(tok)
	s.logger.Infow("session authenticated", "method", "password", "persistent", persistent)
	s.sendFrame(TypeAuth, AuthReply{Success: true, AuthToken: tok})
	h.sendInitialState(ctx, s)
}

func (h *Hub) authToken(ctx context.Context, s *Session, tok domain.Token) {
	if tok == "" || !h.svc.Tokens.Validate(tok) {
		h.svc.Metrics.RecordAuthAttempt("token", false)
		s.logger.Infow("token rejected")
		s.sendFrame(TypeAuth, AuthReply{Success: false})
		return
	}

	h.svc.Metrics.RecordAuthAttempt("token", true)
	s.authenticate(tok)
	s.logger.Infow("session authenticated", "method", "token")
	s.sendFrame(TypeAuth, AuthReply{Success: true})
	h.sendInitialState(ctx, s)
}

// sendInitialState sends config, pipelines, status and netif as four frames.
func (h *Hub) sendInitialState(ctx context.Context, s *Session) {
	s.sendFrame(TypeConfig, h.svc.Config.Snapshot())

	list, err := h.svc.Pipelines.List(ctx)
	if err != nil {
		s.logger.Errorw("failed to list pipelines", "error", err)
	}
	s.sendFrame(TypePipelines, pipelines.Entries(list))

	s.sendFrame(TypeStatus, domain.StatusFrame{IsStreaming: h.svc.Streams.State() == domain.StreamingRunning})
	s.sendFrame(TypeNetif, h.svc.Network.Snapshot())
}

func (h *Hub) handleStart(ctx context.Context, s *Session, raw json.RawMessage) {
	var candidate domain.ConfigCandidate
	if err := json.Unmarshal(raw, &candidate); err != nil {
		s.sendError("invalid start request")
		return
	}

	cfg, err := h.svc.Streams.Start(ctx, candidate)
	// A launch can fail after the config was committed; the others still
	// need the stored config.
	if !cfg.IsZero() {
		h.Broadcast(TypeConfig, cfg, AuthenticatedExcept(s))
	}
	if err != nil {
		h.reportError(ctx, s, "start", err)
	}
}

func (h *Hub) handleStop(ctx context.Context, s *Session, _ json.RawMessage) {
	if err := h.svc.Streams.Stop(ctx); err != nil {
		h.reportError(ctx, s, "stop", err)
	}
}

func (h *Hub) handleBitrate(ctx context.Context, s *Session, raw json.RawMessage) {
	var candidate domain.BitrateCandidate
	if err := json.Unmarshal(raw, &candidate); err != nil {
		s.sendError("invalid bitrate request")
		return
	}

	br, err := h.svc.Streams.UpdateBitrate(ctx, candidate)
	if errors.Is(err, domain.ErrNotStreaming) {
		return
	}
	if err != nil {
		h.reportError(ctx, s, "bitrate update", err)
		return
	}
	h.Broadcast(TypeBitrate, br, AuthenticatedExcept(s))
}

func (h *Hub) handleCommand(ctx context.Context, s *Session, raw json.RawMessage) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		s.sendError("invalid command")
		return
	}
	cmd, err := domain.ParseSystemCommand(name)
	if err != nil {
		s.sendError("unknown command: " + name)
		return
	}

	s.logger.Warnw("system command requested", "command", name)
	if err := h.svc.System.Run(ctx, cmd); err != nil {
		h.reportError(ctx, s, "system command", apperrors.NewProcessError("failed to run "+name, err))
	}
}

func (h *Hub) handleConfig(ctx context.Context, s *Session, raw json.RawMessage) {
	var req ConfigRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendError("invalid config request")
		return
	}
	if req.Password == nil {
		return
	}
	if err := h.svc.Credentials.SetPassword(ctx, *req.Password); err != nil {
		h.reportError(ctx, s, "password change", err)
		return
	}
	s.logger.Infow("password changed")
}

func (h *Hub) handleLogout(ctx context.Context, s *Session, _ json.RawMessage) {
	tok := s.currentToken()
	if err := h.svc.Tokens.Revoke(ctx, tok); err != nil {
		h.reportError(ctx, s, "logout", err)
		return
	}
	s.deauthenticate()
	s.logger.Infow("session logged out")

	if n := h.deauthenticateToken(tok); n > 0 {
		s.logger.Infow("sessions sharing the token logged out", "sessions", n)
	}
}

// deauthenticateToken drops every session still authenticated with tok.
func (h *Hub) deauthenticateToken(tok domain.Token) int {
	if tok == "" {
		return 0
	}
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	n := 0
	for _, other := range sessions {
		if other.IsAuthenticated() && other.currentToken() == tok {
			other.deauthenticate()
			other.logger.Infow("session logged out elsewhere")
			n++
		}
	}
	return n
}
