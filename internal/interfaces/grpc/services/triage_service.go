package services

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	apptriage "github.com/Sira-Clinica/backend/internal/application/triage"
	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// TriageServiceName is the fully qualified gRPC service name.
const TriageServiceName = "sira.triage.v1.Triage"

// TriageServer is the server API of sira.triage.v1.Triage.  Requests and
// responses are google.protobuf.Struct values carrying the same fields as
// the HTTP JSON bodies.
type TriageServer interface {
	Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Normalize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// TriageServiceDesc describes sira.triage.v1.Triage for grpc.Server.
var TriageServiceDesc = grpc.ServiceDesc{
	ServiceName: TriageServiceName,
	HandlerType: (*TriageServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
		{MethodName: "Normalize", Handler: normalizeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sira/triage/v1/triage.proto",
}

func predictHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TriageServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + TriageServiceName + "/Predict"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TriageServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func normalizeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TriageServer).Normalize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + TriageServiceName + "/Normalize"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TriageServer).Normalize(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// TriageClient is the client API of sira.triage.v1.Triage.
type TriageClient interface {
	Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Normalize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type triageClient struct {
	cc grpc.ClientConnInterface
}

// NewTriageClient creates a TriageClient on cc.
func NewTriageClient(cc grpc.ClientConnInterface) TriageClient {
	return &triageClient{cc: cc}
}

func (c *triageClient) Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+TriageServiceName+"/Predict", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *triageClient) Normalize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+TriageServiceName+"/Normalize", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

// TriageService implements TriageServer on top of the application service.
type TriageService struct {
	svc    apptriage.Service
	logger logging.Logger
}

// NewTriageService creates a TriageService.
func NewTriageService(svc apptriage.Service, log logging.Logger) *TriageService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TriageService{svc: svc, logger: log.Named("grpc-triage")}
}

// Predict classifies the vitals and texts in req.  Vital signs sit at the top
// level of the struct, next to dni, motivo_consulta, examenfisico and the
// optional notes.
func (s *TriageService) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	raw := req.AsMap()
	v, err := triage_model.DecodeVitals(raw)
	if err != nil {
		return nil, s.toStatus(err)
	}
	var notes diagnosis.ClinicalNotes
	if err := decodeInto(raw, &notes); err != nil {
		return nil, s.toStatus(err)
	}

	ctx = triage_model.WithSource(ctx, triage_model.SourceGRPC)
	d, err := s.svc.Predict(ctx, &apptriage.PredictInput{
		DNI:            stringField(raw, "dni"),
		Vitals:         v,
		MotivoConsulta: stringField(raw, "motivo_consulta"),
		ExamenFisico:   stringField(raw, "examenfisico"),
		Notes:          notes,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(d)
}

// Normalize previews the normalization of motivo_consulta and examenfisico.
func (s *TriageService) Normalize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	raw := req.AsMap()
	n, err := s.svc.Normalize(ctx, &apptriage.NormalizeInput{
		MotivoConsulta: stringField(raw, "motivo_consulta"),
		ExamenFisico:   stringField(raw, "examenfisico"),
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(n)
}

// StatusCode maps an application error to a gRPC code.
func StatusCode(err error) codes.Code {
	if stderrors.Is(err, context.DeadlineExceeded) || errors.IsCode(err, errors.ErrCodeTimeout) {
		return codes.DeadlineExceeded
	}
	if stderrors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	switch errors.KindOf(err) {
	case errors.KindValidation:
		return codes.InvalidArgument
	case errors.KindNotFound:
		return codes.NotFound
	case errors.KindConfiguration:
		return codes.FailedPrecondition
	case errors.KindExternalService:
		return codes.Unavailable
	}
	return codes.Internal
}

func (s *TriageService) toStatus(err error) error {
	code := StatusCode(err)
	if code == codes.Internal {
		s.logger.Error("grpc request failed",
			logging.String(logging.FieldErrorCode, string(errors.GetCode(err))),
			logging.Err(err))
		return status.Error(codes.Internal, "internal server error")
	}
	msg := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		msg = appErr.Message
		if appErr.Detail != "" {
			msg += ": " + appErr.Detail
		}
	}
	return status.Error(code, msg)
}

func stringField(raw map[string]interface{}, key string) string {
	s, _ := raw[key].(string)
	return s
}

// decodeInto round-trips raw through JSON into dst.
func decodeInto(raw map[string]interface{}, dst interface{}) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode request")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "malformed request")
	}
	return nil
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}
