package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aegis-sign/wallet-adapter/pkg/apierrors"
)

const inboxSize = 64

// OpenRequest 描述客户端请求打开的页面。
type OpenRequest struct {
	URL    string
	Origin string
	Width  int
	Height int
}

// Fragment 解析页面 URL 的 fragment 参数（origin、network 等）。
func (r OpenRequest) Fragment() url.Values {
	u, err := url.Parse(r.URL)
	if err != nil {
		return url.Values{}
	}
	values, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return url.Values{}
	}
	return values
}

// Handler 在会话存续期间运行，返回即关闭对应窗口。
type Handler interface {
	ServeSession(ctx context.Context, s *Session) error
}

// HandlerFunc 把函数适配为 Handler。
type HandlerFunc func(ctx context.Context, s *Session) error

// ServeSession 实现 Handler。
func (f HandlerFunc) ServeSession(ctx context.Context, s *Session) error { return f(ctx, s) }

// Server 把每条 Open 流转换为一个 Session 交给 Handler。
type Server struct {
	handler Handler
	logger  *slog.Logger
	active  atomic.Int64
}

// ServerOption 自定义 Server。
type ServerOption func(*Server)

// WithServerLogger 注入 slog Logger。
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer 创建桥接服务端。
func NewServer(h Handler, opts ...ServerOption) *Server {
	s := &Server{handler: h, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active 返回当前打开的会话数。
func (s *Server) Active() int { return int(s.active.Load()) }

// Open 实现 BridgeServer。
func (s *Server) Open(stream ServerStream) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}
	if first.Kind != FrameOpen {
		return status.Errorf(codes.InvalidArgument, "first frame must be %q, got %q", FrameOpen, first.Kind)
	}
	if first.URL == "" {
		return status.Error(codes.InvalidArgument, "open frame requires url")
	}
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	sess := newSession(OpenRequest{URL: first.URL, Origin: first.Origin, Width: first.Width, Height: first.Height}, stream)
	go func() {
		sess.readLoop(ctx)
		cancel()
	}()

	s.active.Add(1)
	defer s.active.Add(-1)
	s.logger.Info("bridge session opened", slog.String("url", first.URL), slog.String("opener", first.Origin))
	err = s.handler.ServeSession(ctx, sess)
	s.logger.Info("bridge session closed", slog.String("url", first.URL))
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	default:
		if apiErr, ok := apierrors.FromError(err); ok {
			return status.Error(apierrors.GRPCStatus(apiErr.Code), apiErr.Error())
		}
		return status.Error(codes.Internal, err.Error())
	}
}

// Session 是钱包侧看到的一个弹窗。
type Session struct {
	req    OpenRequest
	stream ServerStream

	sendMu sync.Mutex
	inbox  chan []byte
	done   chan struct{}
	focus  atomic.Int64
}

func newSession(req OpenRequest, stream ServerStream) *Session {
	return &Session{
		req:    req,
		stream: stream,
		inbox:  make(chan []byte, inboxSize),
		done:   make(chan struct{}),
	}
}

// Request 返回 open 帧内容。
func (s *Session) Request() OpenRequest { return s.req }

// FocusCount 返回收到的 focus 帧数量。
func (s *Session) FocusCount() int { return int(s.focus.Load()) }

// Post 向打开方投递一条消息。
func (s *Session) Post(data []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.stream.Send(&Frame{Kind: FrameMessage, Data: data})
}

// Recv 等待下一条入站消息；窗口关闭后返回 io.EOF。
func (s *Session) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-s.inbox:
		return data, nil
	default:
	}
	select {
	case data := <-s.inbox:
		return data, nil
	case <-s.done:
		select {
		case data := <-s.inbox:
			return data, nil
		default:
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.done)
	for {
		f, err := s.stream.Recv()
		if err != nil {
			return
		}
		switch f.Kind {
		case FrameMessage:
			select {
			case s.inbox <- []byte(f.Data):
			case <-ctx.Done():
				return
			}
		case FrameFocus:
			s.focus.Add(1)
		case FrameClose:
			return
		}
	}
}
