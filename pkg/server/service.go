package server

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Tributary-ai-services/ContextGuard/middleware"
	"github.com/Tributary-ai-services/ContextGuard/pkg/action"
	"github.com/Tributary-ai-services/ContextGuard/pkg/audit"
	"github.com/Tributary-ai-services/ContextGuard/pkg/pipeline"
	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "contextguard.v1.Guard"

// defaultRecent is the number of events Recent returns when no limit is given.
const defaultRecent = 50

type ScanRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

type ScanResponse struct {
	ID       string           `json:"id"`
	Findings []scan.Finding   `json:"findings"`
	Report   scan.Report      `json:"report"`
	Decision *action.Decision `json:"decision"`
}

type ScrubRequest struct {
	Text string `json:"text"`
}

type ScrubResponse struct {
	Text     string `json:"text"`
	Redacted int    `json:"redacted"`
}

type MaskRequest struct {
	Value string `json:"value"`
}

type MaskResponse struct {
	Masked string `json:"masked"`
}

type SummarizeRequest struct {
	Text string `json:"text"`
}

type SummarizeResponse struct {
	Report scan.Report `json:"report"`
}

type ResolveRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Choice string `json:"choice"`
}

type ResolveResponse struct {
	Choice   pipeline.Choice  `json:"choice"`
	Text     string           `json:"text"`
	Commit   bool             `json:"commit"`
	EventID  string           `json:"event_id,omitempty"`
	Decision *action.Decision `json:"decision"`
}

type RecentRequest struct {
	Limit int `json:"limit"`
}

type RecentResponse struct {
	Events []audit.Event `json:"events"`
	Stats  audit.Stats   `json:"stats"`
}

// GuardServer is the server API for the Guard service.
type GuardServer interface {
	Scan(context.Context, *ScanRequest) (*ScanResponse, error)
	Scrub(context.Context, *ScrubRequest) (*ScrubResponse, error)
	Mask(context.Context, *MaskRequest) (*MaskResponse, error)
	Summarize(context.Context, *SummarizeRequest) (*SummarizeResponse, error)
	Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error)
	Recent(context.Context, *RecentRequest) (*RecentResponse, error)
}

// GuardServiceDesc describes the Guard service for grpc.Server.RegisterService.
var GuardServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GuardServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Scan", GuardServer.Scan),
		unary("Scrub", GuardServer.Scrub),
		unary("Mask", GuardServer.Mask),
		unary("Summarize", GuardServer.Summarize),
		unary("Resolve", GuardServer.Resolve),
		unary("Recent", GuardServer.Recent),
	},
	Metadata: "contextguard/v1/guard.json",
}

// RegisterGuardServer registers srv on s.
func RegisterGuardServer(s grpc.ServiceRegistrar, srv GuardServer) {
	s.RegisterService(&GuardServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(GuardServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GuardServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(GuardServer), ctx, req.(*Req))
			})
		},
	}
}

// Service implements GuardServer over a processor.
type Service struct {
	proc pipeline.Processor
	now  func() time.Time
}

// NewService creates a Guard service backed by proc.
func NewService(proc pipeline.Processor) *Service {
	return &Service{proc: proc, now: time.Now}
}

func (s *Service) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	res, err := s.process(ctx, req.Text, req.Source)
	if err != nil {
		return nil, err
	}
	return &ScanResponse{
		ID:       res.ID,
		Findings: res.Findings,
		Report:   res.Report,
		Decision: res.Decision,
	}, nil
}

// Scrub replaces every detected value. Nothing is recorded.
func (s *Service) Scrub(ctx context.Context, req *ScrubRequest) (*ScrubResponse, error) {
	findings, err := s.proc.Detect(ctx, req.Text)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ScrubResponse{
		Text:     s.proc.Redactor().Scrub(req.Text, findings),
		Redacted: len(findings),
	}, nil
}

func (s *Service) Mask(_ context.Context, req *MaskRequest) (*MaskResponse, error) {
	return &MaskResponse{Masked: s.proc.Redactor().Mask(req.Value)}, nil
}

func (s *Service) Summarize(ctx context.Context, req *SummarizeRequest) (*SummarizeResponse, error) {
	findings, err := s.proc.Detect(ctx, req.Text)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SummarizeResponse{Report: scan.Summarize(findings)}, nil
}

// Resolve scans the text and applies the choice in one call. Clean text is
// returned unchanged and nothing is recorded.
func (s *Service) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	choice, err := pipeline.ParseChoice(req.Choice)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.process(ctx, req.Text, req.Source)
	if err != nil {
		return nil, err
	}
	if res.Clean() {
		return &ResolveResponse{Choice: choice, Text: req.Text, Commit: true, Decision: res.Decision}, nil
	}

	resolution, err := s.proc.Resolve(ctx, res, choice)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ResolveResponse{
		Choice:   resolution.Choice,
		Text:     resolution.Text,
		Commit:   resolution.Commit,
		EventID:  resolution.Event.ID,
		Decision: res.Decision,
	}, nil
}

func (s *Service) Recent(_ context.Context, req *RecentRequest) (*RecentResponse, error) {
	if req.Limit < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "limit must not be negative, got %d", req.Limit)
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultRecent
	}
	log := s.proc.Recorder().Log()
	return &RecentResponse{
		Events: log.Recent(limit),
		Stats:  log.Stats(s.now()),
	}, nil
}

func (s *Service) process(ctx context.Context, text, source string) (*pipeline.Result, error) {
	if source == "" {
		source = middleware.SourceFromContext(ctx)
	}
	res, err := s.proc.Process(ctx, pipeline.Request{
		Text:    text,
		Source:  source,
		Trigger: pipeline.TriggerRequest,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

// toStatus maps processor errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, pipeline.ErrInvalidChoice), errors.Is(err, pipeline.ErrContentTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, pipeline.ErrForceNotAllowed):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
