package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "parkshare.v1.ReservationsService"

const (
	CreateReservationMethod         = "/" + ServiceName + "/CreateReservation"
	GetReservationMethod            = "/" + ServiceName + "/GetReservation"
	CancelReservationMethod         = "/" + ServiceName + "/CancelReservation"
	UpdateReservationMethod         = "/" + ServiceName + "/UpdateReservation"
	ListCompletedReservationsMethod = "/" + ServiceName + "/ListCompletedReservations"
	ListOccurrencesMethod           = "/" + ServiceName + "/ListOccurrences"
	ExportReservationCalendarMethod = "/" + ServiceName + "/ExportReservationCalendar"
)

// ReservationsServiceServer is the server side of parkshare.v1.ReservationsService.
// Every request and response is a google.protobuf.Struct.
type ReservationsServiceServer interface {
	CreateReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCompletedReservations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOccurrences(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportReservationCalendar(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type rpcCall func(srv ReservationsServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call rpcCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReservationsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReservationsServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ReservationsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReservationsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateReservation",
			Handler:    unaryHandler(CreateReservationMethod, ReservationsServiceServer.CreateReservation),
		},
		{
			MethodName: "GetReservation",
			Handler:    unaryHandler(GetReservationMethod, ReservationsServiceServer.GetReservation),
		},
		{
			MethodName: "CancelReservation",
			Handler:    unaryHandler(CancelReservationMethod, ReservationsServiceServer.CancelReservation),
		},
		{
			MethodName: "UpdateReservation",
			Handler:    unaryHandler(UpdateReservationMethod, ReservationsServiceServer.UpdateReservation),
		},
		{
			MethodName: "ListCompletedReservations",
			Handler:    unaryHandler(ListCompletedReservationsMethod, ReservationsServiceServer.ListCompletedReservations),
		},
		{
			MethodName: "ListOccurrences",
			Handler:    unaryHandler(ListOccurrencesMethod, ReservationsServiceServer.ListOccurrences),
		},
		{
			MethodName: "ExportReservationCalendar",
			Handler:    unaryHandler(ExportReservationCalendarMethod, ReservationsServiceServer.ExportReservationCalendar),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parkshare/v1/reservations.proto",
}

func RegisterReservationsServiceServer(s grpc.ServiceRegistrar, srv ReservationsServiceServer) {
	s.RegisterService(&ReservationsServiceDesc, srv)
}
