package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cartlane/affiliate-settlement-service/internal/application"
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

// SettlementInternalService is the mesh-facing surface. Checkout calls
// ResolveAttribution with the visitor's cookies before finalizing an order;
// back-office services poll GetCommissionStatus.
type SettlementInternalService interface {
	ResolveAttribution(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCommissionStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type SettlementInternalServer struct {
	service *application.Service
}

func NewSettlementInternalServer(service *application.Service) *SettlementInternalServer {
	return &SettlementInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc SettlementInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "cartlane.settlement.v1.SettlementInternalService",
		HandlerType: (*SettlementInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ResolveAttribution",
				Handler:    resolveAttributionHandler(svc),
			},
			{
				MethodName: "GetCommissionStatus",
				Handler:    getCommissionStatusHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "cartlane/contracts/proto/settlement/v1/settlement_internal.proto",
	}, svc)
}

// readOnlyJar adapts a cookie name to value map to the jar the application
// reads. Writes are discarded; internal callers forward cookies they do not own.
type readOnlyJar map[string]string

func (j readOnlyJar) Get(name string) (string, bool) {
	v, ok := j[name]
	return v, ok
}

func (j readOnlyJar) Set(ports.Cookie) {}

func (s *SettlementInternalServer) ResolveAttribution(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cookiesVal := req.GetFields()["cookies"]
	jar := readOnlyJar{}
	if cookiesVal != nil {
		for name, v := range cookiesVal.GetStructValue().GetFields() {
			jar[name] = v.GetStringValue()
		}
	}

	aff, clickID, ok := s.service.ResolveAttribution(ctx, jar)
	if !ok {
		resp, err := structpb.NewStruct(map[string]any{"attributed": false})
		if err != nil {
			return nil, status.Errorf(codes.Internal, "build response: %v", err)
		}
		return resp, nil
	}
	resp, err := structpb.NewStruct(map[string]any{
		"attributed":   true,
		"affiliate_id": aff.AffiliateID,
		"code":         aff.Code,
		"click_id":     clickID,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *SettlementInternalServer) GetCommissionStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	idVal := req.GetFields()["commission_id"]
	if idVal == nil || idVal.GetStringValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "missing commission_id")
	}

	row, err := s.service.GetCommission(ctx, internalActor(), idVal.GetStringValue())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "commission not found")
		}
		return nil, status.Errorf(codes.Internal, "get commission: %v", err)
	}
	fields := map[string]any{
		"commission_id": row.CommissionID,
		"affiliate_id":  row.AffiliateID,
		"order_id":      row.OrderID,
		"status":        string(row.Status),
		"amount":        row.Amount,
		"currency":      row.Currency,
		"created_at":    row.CreatedAt.UTC().Format(time.RFC3339),
	}
	if row.PaidAt != nil {
		fields["paid_at"] = row.PaidAt.UTC().Format(time.RFC3339)
		fields["proof_ref"] = row.ProofRef
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

// internalActor represents trusted mesh peers; service-to-service calls reach
// this server only over the private listener.
func internalActor() application.Actor {
	return application.Actor{SubjectID: "internal", Role: "operator"}
}

func resolveAttributionHandler(svc SettlementInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.ResolveAttribution(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/cartlane.settlement.v1.SettlementInternalService/ResolveAttribution",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.ResolveAttribution(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func getCommissionStatusHandler(svc SettlementInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetCommissionStatus(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/cartlane.settlement.v1.SettlementInternalService/GetCommissionStatus",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetCommissionStatus(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
