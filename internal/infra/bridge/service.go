package bridge

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName 是桥接服务的全限定名，健康检查也按此名上报。
const ServiceName = "walletbridge.v1.Bridge"

const openMethod = "/" + ServiceName + "/Open"

// BridgeServer 由钱包侧实现。
type BridgeServer interface {
	Open(stream ServerStream) error
}

// ServerStream 是服务端视角的 Open 流。
type ServerStream interface {
	Send(*Frame) error
	Recv() (*Frame, error)
	Context() context.Context
}

// ClientStream 是调用方视角的 Open 流。
type ClientStream interface {
	Send(*Frame) error
	Recv() (*Frame, error)
	CloseSend() error
	Context() context.Context
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BridgeServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Open",
			Handler:       openHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "walletbridge.proto",
}

func openHandler(srv any, stream grpc.ServerStream) error {
	return srv.(BridgeServer).Open(&serverStream{stream})
}

// Register 把实现挂到 gRPC 服务器上。
func Register(s grpc.ServiceRegistrar, srv BridgeServer) {
	s.RegisterService(&serviceDesc, srv)
}

// OpenStream 在连接上建立一条新的 Open 流。
func OpenStream(ctx context.Context, cc grpc.ClientConnInterface) (ClientStream, error) {
	stream, err := cc.NewStream(ctx, &serviceDesc.Streams[0], openMethod, grpc.ForceCodec(jsonCodec{}))
	if err != nil {
		return nil, err
	}
	return &clientStream{stream}, nil
}

type serverStream struct {
	grpc.ServerStream
}

func (s *serverStream) Send(f *Frame) error { return s.ServerStream.SendMsg(f) }

func (s *serverStream) Recv() (*Frame, error) {
	f := new(Frame)
	if err := s.ServerStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}

type clientStream struct {
	grpc.ClientStream
}

func (s *clientStream) Send(f *Frame) error { return s.ClientStream.SendMsg(f) }

func (s *clientStream) Recv() (*Frame, error) {
	f := new(Frame)
	if err := s.ClientStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}
