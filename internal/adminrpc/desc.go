// Package adminrpc is the provider and admin gRPC service,
// practice.admin.v1.AdminService. Messages travel as JSON under the "json"
// codec, so there is no generated code; the service descriptor below is
// written the way protoc-gen-go-grpc would emit it.
package adminrpc

import (
	"context"

	"google.golang.org/grpc"

	"practice-portal/internal/model"
)

const ServiceName = "practice.admin.v1.AdminService"

type AdminServer interface {
	DashboardStats(context.Context, *StatsRequest) (*model.DashboardStats, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	SetAppointmentStatus(context.Context, *SetAppointmentStatusRequest) (*AppointmentResponse, error)
	ListLeads(context.Context, *ListLeadsRequest) (*ListLeadsResponse, error)
	ResolveLead(context.Context, *ResolveLeadRequest) (*Empty, error)
	ListSubscribers(context.Context, *ListSubscribersRequest) (*ListSubscribersResponse, error)
	PublishPost(context.Context, *PublishPostRequest) (*PostResponse, error)
}

func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("DashboardStats", AdminServer.DashboardStats),
		unary("ListAppointments", AdminServer.ListAppointments),
		unary("SetAppointmentStatus", AdminServer.SetAppointmentStatus),
		unary("ListLeads", AdminServer.ListLeads),
		unary("ResolveLead", AdminServer.ResolveLead),
		unary("ListSubscribers", AdminServer.ListSubscribers),
		unary("PublishPost", AdminServer.PublishPost),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "practice/admin/v1/admin",
}

// FullMethod returns "/practice.admin.v1.AdminService/<name>".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// Methods lists every full method name, for interceptors that need them.
func Methods() []string {
	out := make([]string, 0, len(ServiceDesc.Methods))
	for _, m := range ServiceDesc.Methods {
		out = append(out, FullMethod(m.MethodName))
	}
	return out
}

func unary[Req, Resp any](name string, call func(AdminServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServer), ctx, req.(*Req))
			})
		},
	}
}
