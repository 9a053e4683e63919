package grpc

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Dial opens a plaintext client connection to the gRPC server.
func Dial(grpcAddr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial grpc server: %w", err)
	}
	return conn, nil
}

// NewGatewayHandler exposes the change log service as REST:
//
//	GET  /v1/changelog?entityType=&entityId=&limit=
//	POST /v1/changelog/{id}:undo
func NewGatewayHandler(client *ChangeLogClient) (http.Handler, error) {
	marshaler := &runtime.JSONPb{
		MarshalOptions:   protojson.MarshalOptions{EmitUnpopulated: true},
		UnmarshalOptions: protojson.UnmarshalOptions{DiscardUnknown: true},
	}
	mux := runtime.NewServeMux(runtime.WithMarshalerOption(runtime.MIMEWildcard, marshaler))

	err := mux.HandlePath(http.MethodGet, "/v1/changelog", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		ctx := outgoing(r)
		req, err := listRequest(r)
		if err != nil {
			runtime.HTTPError(ctx, mux, marshaler, w, r, err)
			return
		}
		out, err := client.ListEntries(ctx, req)
		if err != nil {
			runtime.HTTPError(ctx, mux, marshaler, w, r, err)
			return
		}
		write(w, marshaler, out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register list route: %w", err)
	}

	err = mux.HandlePath(http.MethodPost, "/v1/changelog/{id}:undo", func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		ctx := outgoing(r)
		id, err := strconv.ParseInt(params["id"], 10, 64)
		if err != nil {
			runtime.HTTPError(ctx, mux, marshaler, w, r, status.Error(codes.InvalidArgument, "invalid entry id"))
			return
		}
		out, err := client.UndoEntry(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
			"logEntryId": structpb.NewNumberValue(float64(id)),
		}})
		if err != nil {
			runtime.HTTPError(ctx, mux, marshaler, w, r, err)
			return
		}
		write(w, marshaler, out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register undo route: %w", err)
	}

	return mux, nil
}

func listRequest(r *http.Request) (*structpb.Struct, error) {
	q := r.URL.Query()
	req := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	for _, key := range []string{"entityType", "entityId"} {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			req.Fields[key] = structpb.NewStringValue(v)
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid limit")
		}
		req.Fields["limit"] = structpb.NewNumberValue(float64(limit))
	}
	return req, nil
}

// outgoing forwards the actor headers as gRPC metadata.
func outgoing(r *http.Request) context.Context {
	var pairs []string
	if v := r.Header.Get("X-User-Id"); v != "" {
		pairs = append(pairs, MetadataUserID, v)
	}
	if v := r.Header.Get("X-User-Name"); v != "" {
		pairs = append(pairs, MetadataUserName, v)
	}
	return metadata.AppendToOutgoingContext(r.Context(), pairs...)
}

func write(w http.ResponseWriter, marshaler runtime.Marshaler, out *structpb.Struct) {
	body, err := marshaler.Marshal(out)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", marshaler.ContentType(out))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
