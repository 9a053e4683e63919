package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/St1cky1/vfx-tracker/internal/entity"
	"github.com/St1cky1/vfx-tracker/internal/usecase"
)

const (
	MetadataUserID   = "x-user-id"
	MetadataUserName = "x-user-name"
)

type Server struct {
	logService *usecase.ChangeLogService
	undo       *usecase.UndoEngine
	logger     *zap.Logger
	server     *grpc.Server
}

func NewServer(logService *usecase.ChangeLogService, undo *usecase.UndoEngine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logService: logService,
		undo:       undo,
		logger:     logger,
	}
	s.server = grpc.NewServer(grpc.UnaryInterceptor(s.unaryInterceptor))
	RegisterChangeLogServer(s.server, s)
	reflection.Register(s.server)
	return s
}

// Listen binds addr and serves until Stop is called.
func (s *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
	return s.server.Serve(lis)
}

func (s *Server) Stop() {
	s.server.GracefulStop()
}

func (s *Server) ListEntries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	var filter entity.ChangeLogFilter

	if raw := strings.TrimSpace(fields["entityType"].GetStringValue()); raw != "" {
		t, err := entity.ParseEntityType(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "unsupported entityType")
		}
		filter.EntityType = &t
	}
	if raw := strings.TrimSpace(fields["entityId"].GetStringValue()); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid entityId")
		}
		filter.EntityID = &id
	}
	if v, ok := fields["limit"]; ok {
		limit := v.GetNumberValue()
		if limit < 0 || limit != float64(int(limit)) {
			return nil, status.Error(codes.InvalidArgument, "invalid limit")
		}
		filter.Limit = int(limit)
	}

	entries, err := s.logService.List(ctx, filter)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(map[string]any{"entries": entries})
}

func (s *Server) UndoEntry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, ok := entryID(req)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "logEntryId is required")
	}

	result, err := s.undo.Undo(ctx, id, actorFrom(ctx))
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(map[string]any{
		"success": true,
		"message": result.Message(),
		"result":  result,
	})
}

// entryID reads the target entry from logEntryId, activityLogId or id.
func entryID(req *structpb.Struct) (int64, bool) {
	for _, key := range []string{"logEntryId", "activityLogId", "id"} {
		v, ok := req.GetFields()[key]
		if !ok {
			continue
		}
		n := v.GetNumberValue()
		if n <= 0 || n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func actorFrom(ctx context.Context) entity.Actor {
	md, _ := metadata.FromIncomingContext(ctx)
	var actor entity.Actor
	if v := md.Get(MetadataUserName); len(v) > 0 {
		actor.Name = strings.TrimSpace(v[0])
	}
	if v := md.Get(MetadataUserID); len(v) > 0 && strings.TrimSpace(v[0]) != "" {
		id := strings.TrimSpace(v[0])
		actor.ID = &id
	}
	return actor
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func (s *Server) unaryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Info("grpc request",
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, err
}

func CodeFor(err error) codes.Code {
	switch {
	case errors.Is(err, entity.ErrValidation),
		errors.Is(err, entity.ErrNoFieldsToUpdate),
		errors.Is(err, entity.ErrUnsupportedEntityType):
		return codes.InvalidArgument
	case errors.Is(err, entity.ErrAuthorization):
		return codes.PermissionDenied
	case errors.Is(err, entity.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, entity.ErrAlreadyReversed):
		return codes.FailedPrecondition
	case errors.Is(err, entity.ErrEntityExists):
		return codes.AlreadyExists
	case errors.Is(err, entity.ErrSerialization):
		return codes.DataLoss
	default:
		return codes.Internal
	}
}

func (s *Server) toStatus(err error) error {
	code := CodeFor(err)
	if code == codes.Internal {
		s.logger.Error("grpc handler failed", zap.Error(err))
		return status.Error(code, "internal server error")
	}
	return status.Error(code, err.Error())
}
